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

import (
	"context"
	"fmt"

	"github.com/logrange/linker"

	"github.com/solarisdb/solaris/golibs/logging"
)

// Component wraps a Segment's bootstrap/teardown for wiring into a
// github.com/logrange/linker dependency graph, the same Init/Shutdown
// pairing buntdb.Storage uses for its own lifecycle.
type Component struct {
	Options Options

	seg    *Segment
	logger logging.Logger
}

var _ linker.Initializer = (*Component)(nil)
var _ linker.Shutdowner = (*Component)(nil)

// NewComponent returns a Component configured with opts, ready to be registered with linker.
func NewComponent(opts Options) *Component {
	return &Component{Options: opts}
}

// Init implements linker.Initializer.
func (c *Component) Init(_ context.Context) error {
	c.logger = logging.NewLogger("shmmgr.Component")
	c.logger.Infof("initializing shared-memory segment, size=%d", c.Options.Size)

	seg, err := Init(c.Options)
	if err != nil {
		return fmt.Errorf("shmmgr.Component.Init: %w", err)
	}
	c.seg = seg
	return nil
}

// Shutdown implements linker.Shutdowner.
func (c *Component) Shutdown() {
	if c.seg == nil {
		return
	}
	c.logger.Infof("shutting down segment %s", c.seg.ID())
	if err := c.seg.Close(); err != nil {
		c.logger.Errorf("error closing segment: %v", err)
	}
}

// Segment returns the Component's live Segment, valid after Init succeeds.
func (c *Component) Segment() *Segment {
	return c.seg
}
