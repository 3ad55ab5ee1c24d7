//go:build darwin

package focus

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework Cocoa

#import <Cocoa/Cocoa.h>
#include <signal.h>
#include <stdlib.h>
#include <string.h>

static int frontmostApp(char **nameOut) {
	NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
	if (app == nil) {
		return 0;
	}
	const char *name = [[app localizedName] UTF8String];
	if (name != NULL) {
		*nameOut = strdup(name);
	}
	return (int)[app processIdentifier];
}

static int appRunning(int pid) {
	NSRunningApplication *app = [NSRunningApplication runningApplicationWithProcessIdentifier:(pid_t)pid];
	if (app == nil || [app isTerminated]) {
		return 0;
	}
	return 1;
}
*/
import "C"

import (
	"time"
	"unsafe"
)

// tracker is the macOS implementation backed by NSWorkspace.
type tracker struct{}

// NewTracker returns the platform focus tracker.
func NewTracker() (Tracker, error) {
	return &tracker{}, nil
}

func (tracker) Capture() (Target, error) {
	var cname *C.char
	pid := int32(C.frontmostApp(&cname))
	if pid == 0 {
		return Target{}, ErrNoForegroundWindow
	}

	name := ""
	if cname != nil {
		name = C.GoString(cname)
		C.free(unsafe.Pointer(cname))
	}

	return Target{PID: pid, App: name, CapturedAt: time.Now()}, nil
}

func (tracker) StillValid(t Target) bool {
	if t.Zero() {
		return false
	}
	return C.appRunning(C.int(t.PID)) != 0
}
