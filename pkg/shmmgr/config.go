// Copyright 2023 The acquirecloud Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package shmmgr

import "github.com/solarisdb/solaris/golibs/config"

// LoadOptionsFromEnv returns DefaultOptions() overridden by SHMMGR_-prefixed
// environment variables (SHMMGR_SIZE, SHMMGR_HUGEPAGE, SHMMGR_PATH, ...),
// the same environment-enrichment pattern this codebase uses to configure
// other components.
func LoadOptionsFromEnv() (Options, error) {
	e := config.NewEnricher(DefaultOptions())
	if err := e.ApplyEnvVariables("SHMMGR", "_"); err != nil {
		return Options{}, err
	}
	return e.Value(), nil
}
