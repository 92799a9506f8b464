package store

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	kgerrors "github.com/systmms/keygate/internal/errors"
)

// Memory is the volatile Backend implementation used in local mode and by
// tests. It honors the same versioning, labeling and error contract as the
// durable backend but has no persistence and no cross-process visibility.
type Memory struct {
	mu         sync.RWMutex
	containers map[string]*memContainer
}

type memContainer struct {
	labels   map[string]string
	versions []memVersion
}

type memVersion struct {
	payload   []byte
	createdAt time.Time
}

// NewMemory creates an empty in-process backend.
func NewMemory() *Memory {
	return &Memory{containers: make(map[string]*memContainer)}
}

// EnsureContainer registers the container; a second call for the same name
// surfaces AlreadyExistsError, matching the durable backend.
func (m *Memory) EnsureContainer(ctx context.Context, name string, labels map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.containers[name]; exists {
		return kgerrors.AlreadyExistsError{Container: name}
	}

	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	m.containers[name] = &memContainer{labels: copied}
	return nil
}

// AppendVersion appends a payload snapshot and returns its 1-based ordinal.
func (m *Memory) AppendVersion(ctx context.Context, name string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, exists := m.containers[name]
	if !exists {
		return "", kgerrors.NotFoundError{Name: name}
	}

	copied := make([]byte, len(payload))
	copy(copied, payload)
	c.versions = append(c.versions, memVersion{payload: copied, createdAt: time.Now()})
	return strconv.Itoa(len(c.versions)), nil
}

// ReadLatest returns the payload and ordinal of the highest-ordinal version.
func (m *Memory) ReadLatest(ctx context.Context, name string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.containers[name]
	if !exists || len(c.versions) == 0 {
		return nil, "", kgerrors.NotFoundError{Name: name}
	}

	latest := c.versions[len(c.versions)-1]
	copied := make([]byte, len(latest.payload))
	copy(copied, latest.payload)
	return copied, strconv.Itoa(len(c.versions)), nil
}

// ListContainers enumerates containers matching the filter. The filter
// accepts the backend query syntax "labels.<key>=<value>"; empty matches
// everything.
func (m *Memory) ListContainers(ctx context.Context, labelFilter string) ([]Container, error) {
	key, value := parseLabelFilter(labelFilter)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var containers []Container
	for name, c := range m.containers {
		if key != "" && c.labels[key] != value {
			continue
		}
		labels := make(map[string]string, len(c.labels))
		for k, v := range c.labels {
			labels[k] = v
		}
		containers = append(containers, Container{Name: name, Labels: labels})
	}

	return containers, nil
}

// ListVersions returns the version history, oldest first.
func (m *Memory) ListVersions(ctx context.Context, name string) ([]VersionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.containers[name]
	if !exists {
		return nil, kgerrors.NotFoundError{Name: name}
	}

	versions := make([]VersionInfo, 0, len(c.versions))
	for i, v := range c.versions {
		versions = append(versions, VersionInfo{
			Ordinal:    strconv.Itoa(i + 1),
			State:      "ENABLED",
			CreateTime: v.createdAt,
		})
	}
	return versions, nil
}

func parseLabelFilter(filter string) (key, value string) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return "", ""
	}
	filter = strings.TrimPrefix(filter, "labels.")
	parts := strings.SplitN(filter, "=", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
