package turnqueue

import "fmt"

// Key identifies one logical queue. An empty ThreadID scopes the queue to
// the whole container.
type Key struct {
	ContainerID string `json:"container_id"`
	ThreadID    string `json:"thread_id,omitempty"`
}

// NewKey returns the key for a thread inside a container.
func NewKey(containerID, threadID string) Key {
	return Key{ContainerID: containerID, ThreadID: threadID}
}

// ContainerKey returns the key for a container-wide queue.
func ContainerKey(containerID string) Key {
	return Key{ContainerID: containerID}
}

// IsContainerWide reports whether the key has no thread scope.
func (k Key) IsContainerWide() bool {
	return k.ThreadID == ""
}

// Validate reports ErrInvalidKey if the key has no container.
func (k Key) Validate() error {
	if k.ContainerID == "" {
		return fmt.Errorf("%w: container id must not be empty", ErrInvalidKey)
	}
	return nil
}

// String renders the key for logs.
func (k Key) String() string {
	if k.IsContainerWide() {
		return k.ContainerID
	}
	return k.ContainerID + "/" + k.ThreadID
}
