// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across streamchat.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes, Preview: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, StringWidth, PadRight: column-aware layout (go-runewidth)
//   - NormalizeInput: NFC normalization of typed input
//
// Attachments:
//   - ImageDataURLFromFile, ImageDataURL: sniff and encode images as data URLs
//   - ParseDataURL: split a data URL back into MIME type and bytes
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	display := util.TruncateRunes(longText, 50)
//	url, err := util.ImageDataURLFromFile("photo.png")
//	err = util.AtomicWriteFile(path, data, 0600)
package util
