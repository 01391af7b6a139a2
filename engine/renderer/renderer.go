package renderer

import "fmt"

type RendererType uint8

const (
	// Memory keeps every buffer in host memory and records draws instead of
	// submitting them. Used headless and in tests.
	Memory RendererType = iota
	Vulkan
)

func (t RendererType) String() string {
	switch t {
	case Memory:
		return "memory"
	case Vulkan:
		return "vulkan"
	}
	return "unknown"
}

func ParseRendererType(s string) (RendererType, error) {
	switch s {
	case "memory", "":
		return Memory, nil
	case "vulkan":
		return Vulkan, nil
	}
	return Memory, fmt.Errorf("unknown renderer backend %q", s)
}
