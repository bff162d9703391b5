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

package runcontrol

import (
	"github.com/tombee/runcontrol/internal/protocol"
)

// ClassifyStop maps the cause of a stopped notification to a Reason.
// Causes are ranked breakpoint, stepping range, shared library, signal,
// watchpoint, error; anything else counts as a user request.
func ClassifyStop(cause protocol.StopCause) Reason {
	switch cause {
	case protocol.StopBreakpointHit:
		return ReasonBreakpoint
	case protocol.StopEndSteppingRange:
		return ReasonStep
	case protocol.StopSharedLibrary:
		return ReasonSharedLibrary
	case protocol.StopSignalReceived:
		return ReasonSignal
	case protocol.StopWatchpointTrigger, protocol.StopAccessWatchpoint, protocol.StopReadWatchpoint:
		return ReasonWatchpoint
	case protocol.StopError:
		return ReasonError
	default:
		return ReasonUserRequest
	}
}

// ClassifyResume maps the subtype of a running notification to a Reason.
func ClassifyResume(run protocol.RunType) Reason {
	switch run {
	case protocol.RunContinue:
		return ReasonUserRequest
	case protocol.RunNext, protocol.RunNextInstruction,
		protocol.RunStep, protocol.RunStepInstruction, protocol.RunFinish:
		return ReasonStep
	default:
		return ReasonUnknown
	}
}
