package model

import "errors"

var (
	ErrUnknownPreset = errors.New("unknown quality preset")
	ErrNoProjectRoot = errors.New("paths.projectRoot is not set")
)
