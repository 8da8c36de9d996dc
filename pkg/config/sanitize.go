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

package config

import (
	"encoding/json"
	"reflect"
	"strings"
)

const redactedValue = "[redacted]"

// Redacted renders cfg as a JSON-compatible map with every `sensitive:"true"` field masked.
// It is meant for logging the effective configuration at startup.
func Redacted(cfg interface{}) map[string]interface{} {
	v := reflect.ValueOf(cfg)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}

		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil
	}

	return redactStruct(v)
}

func redactStruct(v reflect.Value) map[string]interface{} {
	out := make(map[string]interface{})
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		name, opts, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}

		if name == "" {
			name = sf.Name
		}

		field := v.Field(i)
		if strings.Contains(opts, "omitempty") && field.IsZero() {
			continue
		}

		if sf.Tag.Get("sensitive") == "true" {
			if !field.IsZero() {
				out[name] = redactedValue
			}

			continue
		}

		out[name] = redactValue(field)
	}

	return out
}

func redactValue(v reflect.Value) interface{} {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}

		return redactValue(v.Elem())
	case reflect.Struct:
		if _, ok := v.Interface().(json.Marshaler); ok {
			return v.Interface()
		}

		return redactStruct(v)
	default:
		return v.Interface()
	}
}
