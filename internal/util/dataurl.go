// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// MaxImageSize caps attachments read from disk.
const MaxImageSize = 20 << 20

var (
	// ErrNotImage is returned when an attachment does not sniff as an image.
	ErrNotImage = errors.New("file is not an image")

	// ErrImageTooLarge is returned for attachments over MaxImageSize.
	ErrImageTooLarge = errors.New("image exceeds size limit")

	// ErrInvalidDataURL is returned by ParseDataURL for malformed input.
	ErrInvalidDataURL = errors.New("invalid data URL")
)

// EncodeDataURL returns data as a base64 data URL of the given MIME type.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ImageDataURL sniffs data and encodes it as a data URL. Anything that does
// not sniff as image/* is rejected.
func ImageDataURL(data []byte) (string, error) {
	if len(data) > MaxImageSize {
		return "", ErrImageTooLarge
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mimeType)
	}
	return EncodeDataURL(mimeType, data), nil
}

// ImageDataURLFromFile reads path and returns it as an image data URL.
func ImageDataURLFromFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat image: %w", err)
	}
	if info.Size() > MaxImageSize {
		return "", ErrImageTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return ImageDataURL(data)
}

// ParseDataURL splits a base64 data URL into its MIME type and payload.
func ParseDataURL(s string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mimeType, ok = strings.CutSuffix(header, ";base64")
	if !ok || mimeType == "" {
		return "", nil, ErrInvalidDataURL
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mimeType, data, nil
}
