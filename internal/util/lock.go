// Copyright 2024 icatcheck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"icatcheck/internal/common"
)

// lockRetryDelay is how often a waiting run polls the lock file.
const lockRetryDelay = 100 * time.Millisecond

// RunLock keeps overlapping runs (typically cron) from querying the catalog
// at the same time.
type RunLock struct {
	lock *flock.Flock
}

// AcquireRunLock takes the exclusive lock at path. With wait zero it fails
// immediately with common.ErrLocked when another run holds it; otherwise it
// retries until wait elapses.
func AcquireRunLock(ctx context.Context, path string, wait time.Duration) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	l := flock.New(path)
	var locked bool
	var err error
	if wait <= 0 {
		locked, err = l.TryLock()
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		locked, err = l.TryLockContext(waitCtx, lockRetryDelay)
		if errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", common.ErrLocked, path)
	}

	log.WithField("path", path).Debug("[Lock] acquired")
	return &RunLock{lock: l}, nil
}

// Release drops the lock. It is safe to call on a nil lock.
func (r *RunLock) Release() error {
	if r == nil || r.lock == nil {
		return nil
	}
	return r.lock.Unlock()
}
