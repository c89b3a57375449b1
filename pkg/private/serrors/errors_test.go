// Copyright 2026 The Netqdisc Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/netqdisc/netqdisc/pkg/private/serrors"
)

func TestNewFormatsContext(t *testing.T) {
	err := serrors.New("something failed", "b", 2, "a", 1)
	// Context keys are sorted.
	assert.Equal(t, "something failed {a=1; b=2}", err.Error())
}

func TestNewWithoutContext(t *testing.T) {
	err := serrors.New("plain")
	assert.Equal(t, "plain", err.Error())
}

func TestWrapSupportsIs(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := serrors.Wrap("outer", sentinel, "key", "value")

	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, "outer {key=value}: sentinel", err.Error())
}

func TestWrapNested(t *testing.T) {
	inner := serrors.New("inner", "x", 1)
	outer := serrors.Wrap("outer", inner)
	assert.True(t, errors.Is(outer, inner))
	assert.Contains(t, outer.Error(), "inner {x=1}")
}
