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

// Package serrors provides errors with additional log context in form of
// key value pairs. The returned errors support the standard Is and As
// functionality: for any error err returned by this package,
// errors.Is(err, err) is true, and if err wraps cause, errors.Is(err,
// cause) is true.
package serrors

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ctxPair is one item of context info.
type ctxPair struct {
	Key   string
	Value interface{}
}

// basicError is an error carrying a message, an optional cause, and sorted
// key-value context.
type basicError struct {
	msg   string
	cause error
	ctx   []ctxPair
}

func (e basicError) Error() string {
	var buf bytes.Buffer
	buf.WriteString(e.msg)
	if len(e.ctx) != 0 {
		fmt.Fprint(&buf, " ")
		encodeContext(&buf, e.ctx)
	}
	if e.cause != nil {
		fmt.Fprintf(&buf, ": %s", e.cause)
	}
	return buf.String()
}

func (e basicError) Unwrap() error {
	return e.cause
}

// MarshalLogObject implements zapcore.ObjectMarshaler to have a nicer log
// representation.
func (e basicError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.msg)
	if e.cause != nil {
		if m, ok := e.cause.(zapcore.ObjectMarshaler); ok {
			if err := enc.AddObject("cause", m); err != nil {
				return err
			}
		} else {
			enc.AddString("cause", e.cause.Error())
		}
	}
	for _, pair := range e.ctx {
		zap.Any(pair.Key, pair.Value).AddTo(enc)
	}
	return nil
}

func mkContext(errCtx ...interface{}) []ctxPair {
	np := len(errCtx) / 2
	ctx := make([]ctxPair, np)
	for i := 0; i < np; i++ {
		ctx[i] = ctxPair{Key: fmt.Sprint(errCtx[2*i]), Value: errCtx[2*i+1]}
	}
	sort.Slice(ctx, func(a, b int) bool {
		return ctx[a].Key < ctx[b].Key
	})
	return ctx
}

// New creates a new error with the given message and context.
func New(msg string, errCtx ...interface{}) error {
	return &basicError{msg: msg, ctx: mkContext(errCtx...)}
}

// Wrap returns an error that associates the given message with the given
// cause (an underlying error) unless nil, and the given context. The
// returned error supports Is; Is(cause) returns true.
func Wrap(msg string, cause error, errCtx ...interface{}) error {
	return &basicError{msg: msg, cause: cause, ctx: mkContext(errCtx...)}
}

func encodeContext(buf io.Writer, pairs []ctxPair) {
	fmt.Fprint(buf, "{")
	for i, p := range pairs {
		fmt.Fprintf(buf, "%s=%v", p.Key, p.Value)
		if i != len(pairs)-1 {
			fmt.Fprint(buf, "; ")
		}
	}
	fmt.Fprintf(buf, "}")
}
