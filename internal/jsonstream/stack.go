package jsonstream

// FrameKind is the kind of an entry on the container stack
type FrameKind int

const (
	Array FrameKind = iota + 1
	Object
	// Key marks an object member whose value is being read
	Key
)

func (k FrameKind) String() string {
	switch k {
	case Array:
		return "array"
	case Object:
		return "object"
	case Key:
		return "key"
	default:
		return "none"
	}
}

// Frame is one entry of the container stack. Name is set for Key frames.
type Frame struct {
	Kind FrameKind
	Name string
}

// Stack is a read-only view of the open containers, outermost first
type Stack struct {
	frames []Frame
}

// Len returns the number of open frames
func (s Stack) Len() int {
	return len(s.frames)
}

// At returns the frame at depth i, or the zero Frame if i is out of range
func (s Stack) At(i int) Frame {
	if i < 0 || i >= len(s.frames) {
		return Frame{}
	}
	return s.frames[i]
}

// Top returns the innermost frame, or the zero Frame for an empty stack
func (s Stack) Top() Frame {
	return s.At(len(s.frames) - 1)
}

func (s Stack) String() string {
	out := ""
	for i, f := range s.frames {
		if i > 0 {
			out += " "
		}
		if f.Kind == Key {
			out += "\"" + f.Name + "\":"
			continue
		}
		out += f.Kind.String()
	}
	return out
}
