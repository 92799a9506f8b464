package store

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	kgerrors "github.com/systmms/keygate/internal/errors"
	"github.com/systmms/keygate/internal/logging"
)

// SecretManagerAPI is the subset of the Secret Manager client used by the
// durable backend. Tests substitute a fake.
type SecretManagerAPI interface {
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error)
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) SecretIterator
	ListSecretVersions(ctx context.Context, req *secretmanagerpb.ListSecretVersionsRequest) SecretVersionIterator
}

// SecretIterator iterates secrets; Next returns iterator.Done at the end.
type SecretIterator interface {
	Next() (*secretmanagerpb.Secret, error)
}

// SecretVersionIterator iterates secret versions; Next returns iterator.Done
// at the end.
type SecretVersionIterator interface {
	Next() (*secretmanagerpb.SecretVersion, error)
}

// clientAdapter adapts the concrete Secret Manager client to SecretManagerAPI.
type clientAdapter struct {
	client *secretmanager.Client
}

func (a *clientAdapter) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	return a.client.CreateSecret(ctx, req)
}

func (a *clientAdapter) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	return a.client.AddSecretVersion(ctx, req)
}

func (a *clientAdapter) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return a.client.AccessSecretVersion(ctx, req)
}

func (a *clientAdapter) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) SecretIterator {
	return a.client.ListSecrets(ctx, req)
}

func (a *clientAdapter) ListSecretVersions(ctx context.Context, req *secretmanagerpb.ListSecretVersionsRequest) SecretVersionIterator {
	return a.client.ListSecretVersions(ctx, req)
}

// GCPConfig holds Google Cloud Secret Manager connection settings.
type GCPConfig struct {
	ProjectID             string
	ServiceAccountKeyPath string
}

// GCP is the durable Backend implementation on Google Cloud Secret Manager.
type GCP struct {
	api    SecretManagerAPI
	parent string
	logger *logging.Logger
}

// NewGCP creates a durable backend connected to Secret Manager.
func NewGCP(ctx context.Context, cfg GCPConfig, logger *logging.Logger) (*GCP, error) {
	if cfg.ProjectID == "" {
		return nil, kgerrors.ValidationError{
			Field:   "project_id",
			Message: "required for the durable backend",
		}
	}

	var opts []option.ClientOption
	if cfg.ServiceAccountKeyPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.ServiceAccountKeyPath))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	logger.Info("connected to Secret Manager for project %s", cfg.ProjectID)
	return NewGCPWithAPI(&clientAdapter{client: client}, cfg.ProjectID, logger), nil
}

// NewGCPWithAPI creates a durable backend over an existing API handle.
func NewGCPWithAPI(api SecretManagerAPI, projectID string, logger *logging.Logger) *GCP {
	return &GCP{
		api:    api,
		parent: "projects/" + projectID,
		logger: logger,
	}
}

// EnsureContainer creates the secret; an existing secret surfaces as
// AlreadyExistsError for the caller to swallow.
func (g *GCP) EnsureContainer(ctx context.Context, name string, labels map[string]string) error {
	req := &secretmanagerpb.CreateSecretRequest{
		Parent:   g.parent,
		SecretId: name,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
			Labels: labels,
		},
	}

	if _, err := g.api.CreateSecret(ctx, req); err != nil {
		return g.classify("ensure_container", name, err)
	}

	g.logger.Debug("created container %s", name)
	return nil
}

// AppendVersion adds a new secret version and returns its ordinal.
func (g *GCP) AppendVersion(ctx context.Context, name string, payload []byte) (string, error) {
	req := &secretmanagerpb.AddSecretVersionRequest{
		Parent: g.secretName(name),
		Payload: &secretmanagerpb.SecretPayload{
			Data: payload,
		},
	}

	version, err := g.api.AddSecretVersion(ctx, req)
	if err != nil {
		return "", g.classify("append_version", name, err)
	}

	return ordinalFromName(version.Name), nil
}

// ReadLatest returns the payload and ordinal of the latest enabled version.
func (g *GCP) ReadLatest(ctx context.Context, name string) ([]byte, string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: g.secretName(name) + "/versions/latest",
	}

	resp, err := g.api.AccessSecretVersion(ctx, req)
	if err != nil {
		return nil, "", g.classify("read_latest", name, err)
	}
	if resp.Payload == nil || resp.Payload.Data == nil {
		return nil, "", fmt.Errorf("read_latest %s: version has no payload", name)
	}

	return resp.Payload.Data, ordinalFromName(resp.Name), nil
}

// ListContainers enumerates secrets matching the label filter.
func (g *GCP) ListContainers(ctx context.Context, labelFilter string) ([]Container, error) {
	req := &secretmanagerpb.ListSecretsRequest{
		Parent: g.parent,
		Filter: labelFilter,
	}

	var containers []Container
	it := g.api.ListSecrets(ctx, req)
	for {
		secret, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, g.classify("list_containers", "", err)
		}
		containers = append(containers, Container{
			Name:   secretIDFromName(secret.Name),
			Labels: secret.Labels,
		})
	}

	return containers, nil
}

// ListVersions returns the full version history of a container, for audit
// read-back.
func (g *GCP) ListVersions(ctx context.Context, name string) ([]VersionInfo, error) {
	req := &secretmanagerpb.ListSecretVersionsRequest{
		Parent: g.secretName(name),
	}

	var versions []VersionInfo
	it := g.api.ListSecretVersions(ctx, req)
	for {
		v, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, g.classify("list_versions", name, err)
		}
		info := VersionInfo{
			Ordinal: ordinalFromName(v.Name),
			State:   v.State.String(),
		}
		if v.CreateTime != nil {
			info.CreateTime = v.CreateTime.AsTime()
		}
		versions = append(versions, info)
	}

	return versions, nil
}

func (g *GCP) secretName(name string) string {
	return g.parent + "/secrets/" + name
}

// classify maps gRPC status codes onto the keygate error taxonomy. NotFound
// and AlreadyExists are control-flow signals; Unavailable, DeadlineExceeded
// and ResourceExhausted are retryable; authorization failures are fatal.
func (g *GCP) classify(op, name string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return kgerrors.NotFoundError{Name: name}
	case codes.AlreadyExists:
		return kgerrors.AlreadyExistsError{Container: name}
	case codes.PermissionDenied, codes.Unauthenticated:
		return kgerrors.PermissionError{Op: op, Err: err}
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return kgerrors.TransientError{Op: op, Err: err}
	default:
		return fmt.Errorf("%s %s: %w", op, name, err)
	}
}

// ordinalFromName extracts the version ordinal from a full resource name
// (projects/P/secrets/S/versions/V).
func ordinalFromName(resourceName string) string {
	parts := strings.Split(resourceName, "/")
	if len(parts) >= 6 {
		return parts[5]
	}
	return resourceName
}

// secretIDFromName extracts the secret id from a full resource name
// (projects/P/secrets/S).
func secretIDFromName(resourceName string) string {
	parts := strings.Split(resourceName, "/")
	if len(parts) >= 4 {
		return parts[3]
	}
	return resourceName
}
