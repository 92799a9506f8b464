// Package credential implements the domain contract over the storage
// backend: container naming, labeling, the versioned payload format, and
// credential-pair generation.
package credential

import (
	"time"
)

// Container naming and labeling for gateway credentials. The label filter
// scopes listing to containers provisioned by keygate.
const (
	containerPrefix = "gateway-key-"
	labelType       = "gateway-key"
	labelCreatedBy  = "keygate"

	// LabelFilter is the backend query matching all keygate containers.
	LabelFilter = "labels.type=" + labelType
)

// Pair is one generated consumer key/secret pair. The two values are always
// produced and replaced together.
type Pair struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// Metadata is the rotation bookkeeping persisted alongside each pair.
type Metadata struct {
	AppName            string    `json:"app_name"`
	CreatedAt          time.Time `json:"created_at"`
	LastRotated        time.Time `json:"last_rotated"`
	NextRotation       time.Time `json:"next_rotation"`
	RotationPeriodDays int       `json:"rotation_period_days"`
}

// Record is the persisted payload format, one JSON object per version.
type Record struct {
	Credentials Pair     `json:"credentials"`
	Metadata    Metadata `json:"metadata"`
}

// AppCredential is the entity returned by lifecycle operations: the Active
// version's pair and metadata.
type AppCredential struct {
	AppName            string    `json:"app_name"`
	ConsumerKey        string    `json:"consumer_key"`
	ConsumerSecret     string    `json:"consumer_secret"`
	CreatedAt          time.Time `json:"created_at"`
	LastRotated        time.Time `json:"last_rotated"`
	NextRotation       time.Time `json:"next_rotation"`
	RotationPeriodDays int       `json:"rotation_period_days"`
	Version            string    `json:"version,omitempty"`
}

// Credential builds the external entity from a stored record and the version
// ordinal it was read from.
func (r Record) Credential(version string) AppCredential {
	return AppCredential{
		AppName:            r.Metadata.AppName,
		ConsumerKey:        r.Credentials.Key,
		ConsumerSecret:     r.Credentials.Secret,
		CreatedAt:          r.Metadata.CreatedAt,
		LastRotated:        r.Metadata.LastRotated,
		NextRotation:       r.Metadata.NextRotation,
		RotationPeriodDays: r.Metadata.RotationPeriodDays,
		Version:            version,
	}
}

// ContainerName returns the backend container name for an application.
func ContainerName(app string) string {
	return containerPrefix + app
}

// AppFromContainer recovers the application name from a container name.
func AppFromContainer(container string) string {
	if len(container) > len(containerPrefix) && container[:len(containerPrefix)] == containerPrefix {
		return container[len(containerPrefix):]
	}
	return container
}

// Labels returns the labels attached to an application's container.
func Labels(app string) map[string]string {
	return map[string]string{
		"type":       labelType,
		"app":        app,
		"created_by": labelCreatedBy,
	}
}
