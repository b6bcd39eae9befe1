// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package main runs a demo dock server or client.
package main

func main() {
	Execute()
}
