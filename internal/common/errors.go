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

package common

import (
	"errors"

	"github.com/zeebo/errs"
)

var (
	// CatalogUnavailable wraps connection and query failures. A run that hits
	// one of these aborts.
	CatalogUnavailable = errs.Class("catalog unavailable")

	// AmbiguousResult marks a lookup that expected at most one row and got
	// more. The catalog itself is corrupt when this happens.
	AmbiguousResult = errs.Class("ambiguous result")
)

var (
	ErrMalformedPath     = errors.New("physical path outside vault")
	ErrUnknownDetector   = errors.New("unknown detector")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrUnsupportedDriver = errors.New("unsupported catalog driver")
	ErrLocked            = errors.New("lock held by another run")
	ErrUnknownFormat     = errors.New("unknown output format")
)
