// Package fakes provides test doubles for the external SDKs keygate talks
// to. The Secret Manager fake implements store.SecretManagerAPI with
// in-memory state and gRPC status codes matching the real service.
package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/systmms/keygate/internal/store"
)

// FakeSecretManager is an in-memory stand-in for the Secret Manager client.
type FakeSecretManager struct {
	ProjectID string

	// Secrets maps secret ids to their labels.
	Secrets map[string]map[string]string
	// Versions maps secret ids to their ordered version payloads.
	Versions map[string][][]byte
	// CreateTimes maps secret ids to per-version creation times.
	CreateTimes map[string][]time.Time

	// Errors maps "op:secretID" (or just "op") to an error to return,
	// letting tests inject failures per call site.
	Errors map[string]error
	// FailuresBeforeSuccess makes the keyed operation fail that many times
	// before succeeding, for retry tests.
	FailuresBeforeSuccess map[string]int

	// Calls records every operation for assertion.
	Calls []string
}

// NewFakeSecretManager creates an empty fake for the given project.
func NewFakeSecretManager(projectID string) *FakeSecretManager {
	return &FakeSecretManager{
		ProjectID:             projectID,
		Secrets:               make(map[string]map[string]string),
		Versions:              make(map[string][][]byte),
		CreateTimes:           make(map[string][]time.Time),
		Errors:                make(map[string]error),
		FailuresBeforeSuccess: make(map[string]int),
	}
}

// FailWith configures an error for an operation key.
func (f *FakeSecretManager) FailWith(key string, err error) {
	f.Errors[key] = err
}

// FailTimes makes an operation key fail n times with err, then succeed.
func (f *FakeSecretManager) FailTimes(key string, n int, err error) {
	f.Errors[key] = err
	f.FailuresBeforeSuccess[key] = n
}

func (f *FakeSecretManager) injected(op, secretID string) error {
	for _, key := range []string{op + ":" + secretID, op} {
		err, exists := f.Errors[key]
		if !exists {
			continue
		}
		if remaining, bounded := f.FailuresBeforeSuccess[key]; bounded {
			if remaining <= 0 {
				continue
			}
			f.FailuresBeforeSuccess[key] = remaining - 1
		}
		return err
	}
	return nil
}

func (f *FakeSecretManager) secretIDFromResource(name string) string {
	parts := strings.Split(name, "/")
	if len(parts) >= 4 {
		return parts[3]
	}
	return name
}

// CreateSecret implements store.SecretManagerAPI.
func (f *FakeSecretManager) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	f.Calls = append(f.Calls, "CreateSecret:"+req.SecretId)
	if err := f.injected("CreateSecret", req.SecretId); err != nil {
		return nil, err
	}

	if _, exists := f.Secrets[req.SecretId]; exists {
		return nil, status.Errorf(codes.AlreadyExists, "secret %s already exists", req.SecretId)
	}

	labels := make(map[string]string)
	if req.Secret != nil {
		for k, v := range req.Secret.Labels {
			labels[k] = v
		}
	}
	f.Secrets[req.SecretId] = labels

	return &secretmanagerpb.Secret{
		Name:   fmt.Sprintf("projects/%s/secrets/%s", f.ProjectID, req.SecretId),
		Labels: labels,
	}, nil
}

// AddSecretVersion implements store.SecretManagerAPI.
func (f *FakeSecretManager) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	secretID := f.secretIDFromResource(req.Parent)
	f.Calls = append(f.Calls, "AddSecretVersion:"+secretID)
	if err := f.injected("AddSecretVersion", secretID); err != nil {
		return nil, err
	}

	if _, exists := f.Secrets[secretID]; !exists {
		return nil, status.Errorf(codes.NotFound, "secret %s not found", secretID)
	}

	payload := make([]byte, len(req.Payload.Data))
	copy(payload, req.Payload.Data)
	f.Versions[secretID] = append(f.Versions[secretID], payload)
	f.CreateTimes[secretID] = append(f.CreateTimes[secretID], time.Now())

	ordinal := len(f.Versions[secretID])
	return &secretmanagerpb.SecretVersion{
		Name:  fmt.Sprintf("projects/%s/secrets/%s/versions/%d", f.ProjectID, secretID, ordinal),
		State: secretmanagerpb.SecretVersion_ENABLED,
	}, nil
}

// AccessSecretVersion implements store.SecretManagerAPI.
func (f *FakeSecretManager) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	secretID := f.secretIDFromResource(req.Name)
	f.Calls = append(f.Calls, "AccessSecretVersion:"+secretID)
	if err := f.injected("AccessSecretVersion", secretID); err != nil {
		return nil, err
	}

	versions, exists := f.Versions[secretID]
	if !exists || len(versions) == 0 {
		return nil, status.Errorf(codes.NotFound, "secret %s has no versions", secretID)
	}

	ordinal := len(versions)
	if !strings.HasSuffix(req.Name, "/versions/latest") {
		parts := strings.Split(req.Name, "/")
		requested, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil || requested < 1 || requested > len(versions) {
			return nil, status.Errorf(codes.NotFound, "version not found: %s", req.Name)
		}
		ordinal = requested
	}

	return &secretmanagerpb.AccessSecretVersionResponse{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/%d", f.ProjectID, secretID, ordinal),
		Payload: &secretmanagerpb.SecretPayload{
			Data: versions[ordinal-1],
		},
	}, nil
}

// ListSecrets implements store.SecretManagerAPI. The fake understands the
// single-label filter syntax "labels.<key>=<value>".
func (f *FakeSecretManager) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) store.SecretIterator {
	f.Calls = append(f.Calls, "ListSecrets")
	if err := f.injected("ListSecrets", ""); err != nil {
		return &fakeSecretIterator{err: err}
	}

	var filterKey, filterValue string
	if req.Filter != "" {
		trimmed := strings.TrimPrefix(req.Filter, "labels.")
		if parts := strings.SplitN(trimmed, "=", 2); len(parts) == 2 {
			filterKey, filterValue = parts[0], parts[1]
		}
	}

	ids := make([]string, 0, len(f.Secrets))
	for id := range f.Secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var secrets []*secretmanagerpb.Secret
	for _, id := range ids {
		labels := f.Secrets[id]
		if filterKey != "" && labels[filterKey] != filterValue {
			continue
		}
		secrets = append(secrets, &secretmanagerpb.Secret{
			Name:   fmt.Sprintf("projects/%s/secrets/%s", f.ProjectID, id),
			Labels: labels,
		})
	}

	return &fakeSecretIterator{secrets: secrets}
}

// ListSecretVersions implements store.SecretManagerAPI.
func (f *FakeSecretManager) ListSecretVersions(ctx context.Context, req *secretmanagerpb.ListSecretVersionsRequest) store.SecretVersionIterator {
	secretID := f.secretIDFromResource(req.Parent)
	f.Calls = append(f.Calls, "ListSecretVersions:"+secretID)
	if err := f.injected("ListSecretVersions", secretID); err != nil {
		return &fakeVersionIterator{err: err}
	}

	versions := f.Versions[secretID]
	times := f.CreateTimes[secretID]
	items := make([]*secretmanagerpb.SecretVersion, 0, len(versions))
	for i := range versions {
		var created *timestamppb.Timestamp
		if i < len(times) {
			created = timestamppb.New(times[i])
		}
		items = append(items, &secretmanagerpb.SecretVersion{
			Name:       fmt.Sprintf("projects/%s/secrets/%s/versions/%d", f.ProjectID, secretID, i+1),
			State:      secretmanagerpb.SecretVersion_ENABLED,
			CreateTime: created,
		})
	}

	return &fakeVersionIterator{versions: items}
}

type fakeSecretIterator struct {
	secrets []*secretmanagerpb.Secret
	index   int
	err     error
}

func (it *fakeSecretIterator) Next() (*secretmanagerpb.Secret, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.index >= len(it.secrets) {
		return nil, iterator.Done
	}
	secret := it.secrets[it.index]
	it.index++
	return secret, nil
}

type fakeVersionIterator struct {
	versions []*secretmanagerpb.SecretVersion
	index    int
	err      error
}

func (it *fakeVersionIterator) Next() (*secretmanagerpb.SecretVersion, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.index >= len(it.versions) {
		return nil, iterator.Done
	}
	version := it.versions[it.index]
	it.index++
	return version, nil
}

// Error helpers mirroring the real service's status codes.

// NotFoundError builds a gRPC NotFound error.
func NotFoundError(resource string) error {
	return status.Errorf(codes.NotFound, "resource %s not found", resource)
}

// PermissionDeniedError builds a gRPC PermissionDenied error.
func PermissionDeniedError(message string) error {
	return status.Error(codes.PermissionDenied, message)
}

// UnavailableError builds a gRPC Unavailable error.
func UnavailableError(message string) error {
	return status.Error(codes.Unavailable, message)
}
