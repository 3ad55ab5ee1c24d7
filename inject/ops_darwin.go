//go:build darwin

package inject

import (
	"errors"
	"time"
	"unsafe"
)

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa -framework ApplicationServices
// #import <Cocoa/Cocoa.h>
// #import <ApplicationServices/ApplicationServices.h>
//
// const char* readPasteboard() {
//     NSPasteboard *pb = [NSPasteboard generalPasteboard];
//     NSString *s = [pb stringForType:NSPasteboardTypeString];
//     if (s == nil) return NULL;
//     return strdup([s UTF8String]);
// }
//
// int writePasteboard(const char *text) {
//     NSPasteboard *pb = [NSPasteboard generalPasteboard];
//     [pb clearContents];
//     BOOL ok = [pb setString:[NSString stringWithUTF8String:text]
//                     forType:NSPasteboardTypeString];
//     return ok ? 0 : -1;
// }
//
// int activateApp(int pid) {
//     NSRunningApplication *app =
//         [NSRunningApplication runningApplicationWithProcessIdentifier:pid];
//     if (app == nil) return -1;
//     BOOL ok = [app activateWithOptions:NSApplicationActivateIgnoringOtherApps];
//     return ok ? 0 : -2;
// }
//
// int sendPasteChord() {
//     CGEventSourceRef src =
//         CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
//     if (src == NULL) return -1;
//     // kVK_ANSI_V = 9
//     CGEventRef down = CGEventCreateKeyboardEvent(src, (CGKeyCode)9, true);
//     CGEventRef up = CGEventCreateKeyboardEvent(src, (CGKeyCode)9, false);
//     CGEventSetFlags(down, kCGEventFlagMaskCommand);
//     CGEventSetFlags(up, kCGEventFlagMaskCommand);
//     CGEventPost(kCGHIDEventTap, down);
//     CGEventPost(kCGHIDEventTap, up);
//     CFRelease(down);
//     CFRelease(up);
//     CFRelease(src);
//     return 0;
// }
//
// int sendKeycode(int code) {
//     CGEventSourceRef src =
//         CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
//     if (src == NULL) return -1;
//     CGEventRef down = CGEventCreateKeyboardEvent(src, (CGKeyCode)code, true);
//     CGEventRef up = CGEventCreateKeyboardEvent(src, (CGKeyCode)code, false);
//     CGEventPost(kCGHIDEventTap, down);
//     CGEventPost(kCGHIDEventTap, up);
//     CFRelease(down);
//     CFRelease(up);
//     CFRelease(src);
//     return 0;
// }
//
// int sendUnicodeChar(unsigned short ch) {
//     CGEventSourceRef src =
//         CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
//     if (src == NULL) return -1;
//     CGEventRef down = CGEventCreateKeyboardEvent(src, (CGKeyCode)0, true);
//     CGEventRef up = CGEventCreateKeyboardEvent(src, (CGKeyCode)0, false);
//     UniChar c = ch;
//     CGEventKeyboardSetUnicodeString(down, 1, &c);
//     CGEventKeyboardSetUnicodeString(up, 1, &c);
//     CGEventPost(kCGHIDEventTap, down);
//     CGEventPost(kCGHIDEventTap, up);
//     CFRelease(down);
//     CFRelease(up);
//     CFRelease(src);
//     return 0;
// }
import "C"

const (
	vkReturn = 36
	vkTab    = 48
)

type darwinOps struct{}

func newOps() (ops, error) {
	return darwinOps{}, nil
}

func (darwinOps) readClipboard() (string, error) {
	cstr := C.readPasteboard()
	if cstr == nil {
		return "", errors.New("pasteboard holds no string")
	}
	defer C.free(unsafe.Pointer(cstr))
	return C.GoString(cstr), nil
}

func (darwinOps) writeClipboard(text string) error {
	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	if C.writePasteboard(ctext) != 0 {
		return errors.New("pasteboard write rejected")
	}
	return nil
}

func (darwinOps) raiseWindow(pid int32) error {
	switch C.activateApp(C.int(pid)) {
	case 0:
		return nil
	case -1:
		return errors.New("application not running")
	default:
		return errors.New("activation rejected")
	}
}

func (darwinOps) sendPaste() error {
	if C.sendPasteChord() != 0 {
		return errors.New("event source unavailable")
	}
	return nil
}

func (darwinOps) typeText(text string, delay time.Duration) error {
	for _, r := range text {
		var rc C.int
		switch r {
		case '\n':
			rc = C.sendKeycode(vkReturn)
		case '\t':
			rc = C.sendKeycode(vkTab)
		default:
			// CGEventKeyboardSetUnicodeString takes UTF-16 units; runes
			// outside the BMP need a surrogate pair sent as two events.
			if r > 0xFFFF {
				r -= 0x10000
				if C.sendUnicodeChar(C.ushort(0xD800+(r>>10))) != 0 {
					return errors.New("event source unavailable")
				}
				rc = C.sendUnicodeChar(C.ushort(0xDC00 + (r & 0x3FF)))
			} else {
				rc = C.sendUnicodeChar(C.ushort(r))
			}
		}
		if rc != 0 {
			return errors.New("event source unavailable")
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return nil
}
