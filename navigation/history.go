package navigation

import "github.com/go-gl/mathgl/mgl64"

// HistoricalPosition is a committed camera pose at a given frame.
type HistoricalPosition struct {
	Frame    int64
	Position mgl64.Vec3
	Yaw      float64
	Pitch    float64
}

// History is a fixed-size circular buffer of committed camera poses.
type History struct {
	buffer   []HistoricalPosition
	capacity int
	head     int // next write position
	size     int
}

// NewHistory creates a history holding at most capacity poses. A capacity below one is raised
// to one.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		buffer:   make([]HistoricalPosition, capacity),
		capacity: capacity,
	}
}

// Add records a pose, evicting the oldest one if the history is full.
func (h *History) Add(pos HistoricalPosition) {
	h.buffer[h.head] = pos
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Get returns the pose recorded at the frame passed.
func (h *History) Get(frame int64) (HistoricalPosition, bool) {
	for i := 0; i < h.size; i++ {
		p := h.at(i)
		if p.Frame == frame {
			return p, true
		}
		// Frames are recorded in increasing order.
		if p.Frame < frame {
			break
		}
	}
	return HistoricalPosition{}, false
}

// Closest returns the pose recorded nearest to the frame passed.
func (h *History) Closest(frame int64) (HistoricalPosition, bool) {
	if h.size == 0 {
		return HistoricalPosition{}, false
	}

	var closest HistoricalPosition
	var closestDist int64 = 1<<63 - 1
	for i := 0; i < h.size; i++ {
		p := h.at(i)
		if dist := abs64(p.Frame - frame); dist < closestDist {
			closestDist = dist
			closest = p
		}
	}
	return closest, true
}

// Range returns the poses recorded within [start, end], most recent first.
func (h *History) Range(start, end int64) []HistoricalPosition {
	if h.size == 0 {
		return nil
	}
	result := make([]HistoricalPosition, 0, h.size)
	for i := 0; i < h.size; i++ {
		if p := h.at(i); p.Frame >= start && p.Frame <= end {
			result = append(result, p)
		}
	}
	return result
}

// Latest returns the most recently recorded pose.
func (h *History) Latest() (HistoricalPosition, bool) {
	if h.size == 0 {
		return HistoricalPosition{}, false
	}
	return h.at(0), true
}

// Len returns the number of poses held.
func (h *History) Len() int {
	return h.size
}

// Capacity ...
func (h *History) Capacity() int {
	return h.capacity
}

// Clear removes every pose.
func (h *History) Clear() {
	h.head = 0
	h.size = 0
}

// at returns the i-th most recent pose.
func (h *History) at(i int) HistoricalPosition {
	return h.buffer[(h.head-1-i+h.capacity)%h.capacity]
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
