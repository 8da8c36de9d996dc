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

// Package dmf implements the envelope, codec and error taxonomy of the device management
// federation protocol spoken between the update server and devices over NATS JetStream.
package dmf

// Message headers.
const (
	HeaderType          = "type"
	HeaderTenant        = "tenant"
	HeaderThingID       = "thingId"
	HeaderTopic         = "topic"
	HeaderCorrelationID = "correlationId"
	HeaderContentType   = "content-type"
	HeaderReplyTo       = "reply_to"
	HeaderAuthorization = "Authorization"

	// Dead-letter headers are added to the original headers of a rejected message.
	HeaderDeadLetterReason  = "x-dmf-dead-letter-reason"
	HeaderDeadLetterSubject = "x-dmf-dead-letter-subject"
	HeaderDeadLetterTime    = "x-dmf-dead-letter-time"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// MessageType is the value of the type header.
type MessageType string

const (
	TypeThingCreated MessageType = "THING_CREATED"
	TypeThingRemoved MessageType = "THING_REMOVED"
	TypeEvent        MessageType = "EVENT"
	TypePing         MessageType = "PING"

	TypeThingDeleted MessageType = "THING_DELETED"
	TypePingResponse MessageType = "PING_RESPONSE"
)

// Inbound reports whether devices may send the type.
func (t MessageType) Inbound() bool {
	switch t {
	case TypeThingCreated, TypeThingRemoved, TypeEvent, TypePing:
		return true
	case TypeThingDeleted, TypePingResponse:
		return false
	}

	return false
}

// RequiresThingID reports whether the thingId header is mandatory for the type.
func (t MessageType) RequiresThingID() bool {
	return t == TypeThingCreated || t == TypeThingRemoved || t == TypeEvent
}

// Topic is the value of the topic header of EVENT messages.
type Topic string

// Inbound topics.
const (
	TopicUpdateActionStatus Topic = "UPDATE_ACTION_STATUS"
	TopicUpdateAttributes   Topic = "UPDATE_ATTRIBUTES"
	TopicUpdateAutoConfirm  Topic = "UPDATE_AUTO_CONFIRM"
)

// Outbound topics.
const (
	TopicDownload                Topic = "DOWNLOAD"
	TopicDownloadAndInstall      Topic = "DOWNLOAD_AND_INSTALL"
	TopicConfirm                 Topic = "CONFIRM"
	TopicCancelDownload          Topic = "CANCEL_DOWNLOAD"
	TopicBatchDownload           Topic = "BATCH_DOWNLOAD"
	TopicBatchDownloadAndInstall Topic = "BATCH_DOWNLOAD_AND_INSTALL"
	TopicRequestAttributesUpdate Topic = "REQUEST_ATTRIBUTES_UPDATE"
	TopicMultiAction             Topic = "MULTI_ACTION"
)

// Inbound reports whether devices may send the topic.
func (t Topic) Inbound() bool {
	switch t {
	case TopicUpdateActionStatus, TopicUpdateAttributes, TopicUpdateAutoConfirm:
		return true
	case TopicDownload, TopicDownloadAndInstall, TopicConfirm, TopicCancelDownload,
		TopicBatchDownload, TopicBatchDownloadAndInstall, TopicRequestAttributesUpdate, TopicMultiAction:
		return false
	}

	return false
}

// Batch returns the batch counterpart of a download topic.
func (t Topic) Batch() (Topic, bool) {
	switch t {
	case TopicDownload:
		return TopicBatchDownload, true
	case TopicDownloadAndInstall:
		return TopicBatchDownloadAndInstall, true
	case TopicUpdateActionStatus, TopicUpdateAttributes, TopicUpdateAutoConfirm, TopicConfirm,
		TopicCancelDownload, TopicBatchDownload, TopicBatchDownloadAndInstall,
		TopicRequestAttributesUpdate, TopicMultiAction:
		return "", false
	}

	return "", false
}
