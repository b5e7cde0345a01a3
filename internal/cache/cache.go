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

// Package cache provides the per-run lookup caches used by detectors.
//
// Caches live for one detector run and are dropped with it; nothing is kept
// between runs so that every run reads the catalog as it is.
//
// Currently provides:
// - NameCache: id → display name memo in front of a catalog lookup
package cache

import "os"

// Disabled turns every cache into a pass-through.
// Set via ICATCHECK_CACHE=0 environment variable.
//
// Useful to verify that a detector gives the same findings with and without
// memoized lookups.
var Disabled = os.Getenv("ICATCHECK_CACHE") == "0"
