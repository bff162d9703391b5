// Copyright 2025 Tom Barlow
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


package shared

import (
	"os"

	"github.com/tombee/runcontrol/internal/config"
)

// LoadConfig loads the file named by --config, or the default config file
// when it exists, and wraps failures for the config exit code.
func LoadConfig() (*config.Config, error) {
	path := Global().ConfigPath
	if path == "" {
		if def, err := config.ConfigPath(); err == nil {
			if _, err := os.Stat(def); err == nil {
				path = def
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	if Global().Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
