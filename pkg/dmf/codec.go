/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dmf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/nats-io/nats.go"
)

// Envelope is a validated inbound message.
type Envelope struct {
	Subject       string
	Type          MessageType
	Topic         Topic
	Tenant        string
	ThingID       string
	CorrelationID string
	ContentType   string
	ReplyTo       string
	// Headers holds the first value of every header.
	Headers map[string]string
	Body    []byte
}

// Decode validates the mandatory headers of an inbound message.
// Every error it returns is a protocol violation.
func Decode(msg *nats.Msg) (*Envelope, error) {
	if msg == nil {
		return nil, ErrMalformedMessage
	}

	env := &Envelope{
		Subject: msg.Subject,
		Headers: FlattenHeaders(msg.Header),
		Body:    msg.Data,
	}

	env.Type = MessageType(env.Headers[HeaderType])
	env.Topic = Topic(env.Headers[HeaderTopic])
	env.Tenant = env.Headers[HeaderTenant]
	env.ThingID = env.Headers[HeaderThingID]
	env.CorrelationID = env.Headers[HeaderCorrelationID]
	env.ContentType = env.Headers[HeaderContentType]
	env.ReplyTo = env.Headers[HeaderReplyTo]

	if env.Type == "" {
		return env, fmt.Errorf("%w: %s", ErrMissingHeader, HeaderType)
	}

	if !env.Type.Inbound() {
		return env, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}

	if strings.TrimSpace(env.Tenant) == "" {
		return env, fmt.Errorf("%w: %s", ErrMissingHeader, HeaderTenant)
	}

	if env.Type.RequiresThingID() && strings.TrimSpace(env.ThingID) == "" {
		return env, fmt.Errorf("%w: %s", ErrMissingHeader, HeaderThingID)
	}

	if env.Type == TypeEvent {
		if env.Topic == "" {
			return env, fmt.Errorf("%w: %s", ErrMissingHeader, HeaderTopic)
		}

		if !env.Topic.Inbound() {
			return env, fmt.Errorf("%w: %q", ErrUnknownTopic, env.Topic)
		}
	}

	if len(env.Body) > 0 && !IsJSON(env.ContentType) {
		return env, fmt.Errorf("%w: %q", ErrUnsupportedContentType, env.ContentType)
	}

	return env, nil
}

// IsJSON reports whether a content type denotes JSON, e.g. "application/json; charset=utf-8"
// or "application/vnd.fleet+json".
func IsJSON(contentType string) bool {
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == ContentTypeJSON || strings.HasSuffix(mediaType, "+json")
}

// DecodeBody unmarshals a JSON body into T. Unknown fields are ignored. Failures carry a
// *ParseError with the decoder's first failure detail.
func DecodeBody[T any](body []byte) (*T, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Detail: "empty body", Err: ErrMalformedMessage}
	}

	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, &ParseError{Detail: parseDetail(err), Err: err}
	}

	return &v, nil
}

func parseDetail(err error) string {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("%s (offset %d)", syntaxErr.Error(), syntaxErr.Offset)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %q: cannot use %s as %s (offset %d)",
			typeErr.Field, typeErr.Value, typeErr.Type, typeErr.Offset)
	}

	return err.Error()
}

// FlattenHeaders keeps the first value of every header.
func FlattenHeaders(h nats.Header) map[string]string {
	out := make(map[string]string, len(h))

	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}

	return out
}

// Outbound describes a device-bound message before encoding.
type Outbound struct {
	Subject       string
	Type          MessageType
	Topic         Topic
	Tenant        string
	ThingID       string
	CorrelationID string
	ContentType   string
	// Payload is marshalled to JSON unless Raw is set.
	Payload any
	Raw     []byte
}

// Encode turns an Outbound into a NATS message.
func Encode(o Outbound) (*nats.Msg, error) {
	msg := nats.NewMsg(o.Subject)

	msg.Header.Set(HeaderType, string(o.Type))
	msg.Header.Set(HeaderTenant, o.Tenant)

	if o.Topic != "" {
		msg.Header.Set(HeaderTopic, string(o.Topic))
	}

	if o.ThingID != "" {
		msg.Header.Set(HeaderThingID, o.ThingID)
	}

	if o.CorrelationID != "" {
		msg.Header.Set(HeaderCorrelationID, o.CorrelationID)
	}

	contentType := o.ContentType

	switch {
	case o.Raw != nil:
		msg.Data = o.Raw
	case o.Payload != nil:
		data, err := json.Marshal(o.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", o.Topic, err)
		}

		msg.Data = data

		if contentType == "" {
			contentType = ContentTypeJSON
		}
	}

	if contentType != "" {
		msg.Header.Set(HeaderContentType, contentType)
	}

	return msg, nil
}
