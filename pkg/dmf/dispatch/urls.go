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

package dispatch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/carverauto/fleetradar/pkg/models"
)

const controllerIDPlaceholder = "{controllerId}"

var (
	errPatternNameRequired = errors.New("artifact url pattern name is required")
	errPatternRequired     = errors.New("artifact url pattern is required")
)

// URLPattern expands to one download URL per artifact, e.g.
// "{protocol}://{hostname}:{port}/{tenant}/controller/v1/{controllerId}/softwaremodules/{softwareModuleId}/artifacts/{artifactFileName}".
type URLPattern struct {
	// Name is the key of the URL in the artifact url map, e.g. "HTTPS".
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
	Pattern  string `json:"pattern"`
}

// Validate checks that the pattern can be expanded.
func (p URLPattern) Validate() error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, errPatternNameRequired)
	}

	if p.Pattern == "" {
		errs = append(errs, fmt.Errorf("%w: %s", errPatternRequired, p.Name))
	}

	return errors.Join(errs...)
}

// URLRequest identifies the artifact to resolve URLs for. ControllerID is empty for
// batch payloads.
type URLRequest struct {
	Tenant       string
	ControllerID string
	Artifact     *models.Artifact
}

// ArtifactURLResolver returns the download URLs of an artifact keyed by protocol name.
type ArtifactURLResolver interface {
	URLs(req URLRequest) map[string]string
}

// PatternURLResolver expands configured URL patterns.
type PatternURLResolver struct {
	patterns []URLPattern
}

// NewPatternURLResolver returns a resolver over patterns.
func NewPatternURLResolver(patterns []URLPattern) *PatternURLResolver {
	return &PatternURLResolver{patterns: append([]URLPattern(nil), patterns...)}
}

// URLs implements ArtifactURLResolver. Patterns referencing {controllerId} are skipped
// when the request does not name a controller.
func (r *PatternURLResolver) URLs(req URLRequest) map[string]string {
	out := make(map[string]string, len(r.patterns))

	if req.Artifact == nil {
		return out
	}

	for _, p := range r.patterns {
		if req.ControllerID == "" && strings.Contains(p.Pattern, controllerIDPlaceholder) {
			continue
		}

		port := ""
		if p.Port > 0 {
			port = strconv.Itoa(p.Port)
		}

		replacer := strings.NewReplacer(
			"{protocol}", p.Protocol,
			"{hostname}", p.Hostname,
			"{port}", port,
			"{tenant}", req.Tenant,
			controllerIDPlaceholder, req.ControllerID,
			"{softwareModuleId}", strconv.FormatInt(req.Artifact.SoftwareModuleID, 10),
			"{artifactFileName}", req.Artifact.Filename,
			"{artifactSHA1}", req.Artifact.SHA1,
		)

		out[p.Name] = replacer.Replace(p.Pattern)
	}

	return out
}
