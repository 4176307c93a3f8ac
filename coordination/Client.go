// Package coordination talks to the external coordination store that
// assigns rebuild jobs to hosts and tracks their status: a shared
// directory of per-host job descriptors and status files, the same way
// a local ticket store keeps tickets as individual files rather than
// rows in a database.
package coordination

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// ErrCoordinationFailure wraps any error talking to the coordination
// store, whether that's a missing job file, a malformed descriptor, or
// a failed status write.
var ErrCoordinationFailure = errors.New("coordination: coordination store failure")

// Job is the ordered rebuild work list for one host at one version, as
// deposited by whatever external process decides cache placement.
type Job struct {
	Version    uint32         `yaml:"version"`
	Columnlets []ColumnletJob `yaml:"columnlets"`
}

// ColumnletJob identifies one columnlet to fetch and cache.
type ColumnletJob struct {
	Path       string `yaml:"path"`
	RowGroupID uint16 `yaml:"row_group_id"`
	ColumnID   uint16 `yaml:"column_id"`
}

// Status is the rebuild outcome a host reports back for a version.
type Status struct {
	Host      string `json:"host"`
	Version   uint32 `json:"version"`
	Code      int    `json:"code"`
	UpdatedAt string `json:"updated_at"`
}

// Lease grants one host exclusive rebuild rights for a version, stamped
// with a session id so a stale lease can be told apart from a current one.
type Lease struct {
	ID         string
	Host       string
	Version    uint32
	AcquiredAt time.Time
}

// Client is a coordination store client backed by a shared directory.
type Client struct {
	dir string
}

// NewClient returns a Client rooted at dir, creating it if it doesn't exist.
func NewClient(dir string) (*Client, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrCoordinationFailure, dir, err)
	}
	return &Client{dir: dir}, nil
}

// FetchJob reads and decodes the job descriptor for host at version.
func (c *Client) FetchJob(ctx context.Context, version uint32, host string) (*Job, error) {
	path := c.jobPath(host, version)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCoordinationFailure, path, err)
	}

	var job Job
	if err := yaml.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCoordinationFailure, path, err)
	}

	return &job, nil
}

// PublishStatus atomically writes host's rebuild outcome for version.
func (c *Client) PublishStatus(ctx context.Context, version uint32, host string, code int) error {
	st := Status{
		Host:      host,
		Version:   version,
		Code:      code,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: encode status: %v", ErrCoordinationFailure, err)
	}

	path := c.statusPath(host, version)
	if err := atomic.WriteFile(path, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrCoordinationFailure, path, err)
	}

	return nil
}

// Expired reports whether the lease is older than ttl. FetchJob and
// PublishStatus never check lease expiry; callers that hold a Lease
// check this themselves before trusting it, per lease.ttl.seconds in
// the configuration.
func (l *Lease) Expired(ttl time.Duration) bool {
	return time.Since(l.AcquiredAt) > ttl
}

// AcquireLease stamps a new lease for host at version. The caller is
// responsible for persisting/checking leases against whatever exclusion
// mechanism the coordination store backs AcquireLease with; this just
// mints the session identity.
func (c *Client) AcquireLease(host string, version uint32) *Lease {
	return &Lease{
		ID:         uuid.NewString(),
		Host:       host,
		Version:    version,
		AcquiredAt: time.Now(),
	}
}

func (c *Client) jobPath(host string, version uint32) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.v%d.job.yaml", host, version))
}

func (c *Client) statusPath(host string, version uint32) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.v%d.status.json", host, version))
}
