package xprop

import (
	"cmp"
	"fmt"
)

const (
	defaultXMLMaxDepth       = 256
	defaultXMLMaxCaptureSize = 1 << 20
)

type xmlLimits struct {
	maxDepth       int
	maxCaptureSize int
}

func resolveXMLLimits(maxDepth, maxCaptureSize int) (xmlLimits, error) {
	if maxDepth < 0 {
		return xmlLimits{}, fmt.Errorf("xml max depth must be >= 0")
	}
	if maxCaptureSize < 0 {
		return xmlLimits{}, fmt.Errorf("xml max capture size must be >= 0")
	}
	return xmlLimits{
		maxDepth:       defaultXMLLimit(maxDepth, defaultXMLMaxDepth),
		maxCaptureSize: defaultXMLLimit(maxCaptureSize, defaultXMLMaxCaptureSize),
	}, nil
}

func defaultXMLLimit(value, fallback int) int {
	return cmp.Or(value, fallback)
}
