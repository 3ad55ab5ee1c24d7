//go:build darwin

package audio

/*
#cgo LDFLAGS: -framework AudioToolbox -framework CoreFoundation

#include <AudioToolbox/AudioToolbox.h>
#include <stdlib.h>

extern void goAudioFrames(float *samples, int count);

static AudioQueueRef inputQueue = NULL;

static void inputCallback(void *userData, AudioQueueRef queue,
		AudioQueueBufferRef buffer, const AudioTimeStamp *startTime,
		UInt32 numPackets, const AudioStreamPacketDescription *packetDesc) {
	if (buffer->mAudioDataByteSize > 0) {
		goAudioFrames((float *)buffer->mAudioData,
			(int)(buffer->mAudioDataByteSize / sizeof(float)));
	}
	AudioQueueEnqueueBuffer(queue, buffer, 0, NULL);
}

static int startInputQueue(int sampleRate) {
	if (inputQueue != NULL) {
		return -1;
	}

	AudioStreamBasicDescription fmt = {0};
	fmt.mSampleRate = (Float64)sampleRate;
	fmt.mFormatID = kAudioFormatLinearPCM;
	fmt.mFormatFlags = kAudioFormatFlagIsFloat | kAudioFormatFlagIsPacked;
	fmt.mChannelsPerFrame = 1;
	fmt.mBitsPerChannel = 32;
	fmt.mBytesPerFrame = sizeof(float);
	fmt.mFramesPerPacket = 1;
	fmt.mBytesPerPacket = sizeof(float);

	OSStatus st = AudioQueueNewInput(&fmt, inputCallback, NULL, NULL,
		kCFRunLoopCommonModes, 0, &inputQueue);
	if (st != noErr) {
		inputQueue = NULL;
		return (int)st;
	}

	// 64 ms per buffer at the configured rate.
	UInt32 bufBytes = (UInt32)(sampleRate / 16) * sizeof(float);
	for (int i = 0; i < 3; i++) {
		AudioQueueBufferRef buf;
		st = AudioQueueAllocateBuffer(inputQueue, bufBytes, &buf);
		if (st != noErr) {
			AudioQueueDispose(inputQueue, true);
			inputQueue = NULL;
			return (int)st;
		}
		AudioQueueEnqueueBuffer(inputQueue, buf, 0, NULL);
	}

	st = AudioQueueStart(inputQueue, NULL);
	if (st != noErr) {
		AudioQueueDispose(inputQueue, true);
		inputQueue = NULL;
		return (int)st;
	}
	return 0;
}

static void stopInputQueue(void) {
	if (inputQueue != NULL) {
		AudioQueueStop(inputQueue, true);
		AudioQueueDispose(inputQueue, true);
		inputQueue = NULL;
	}
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// Handler for the cgo callback. Only one stream is open at a time,
// enforced by Source, so a single process-wide slot suffices.
var (
	activeHandler   func(samples []float32)
	activeHandlerMu sync.RWMutex
)

//export goAudioFrames
func goAudioFrames(samples *C.float, count C.int) {
	n := int(count)
	if n <= 0 {
		return
	}

	activeHandlerMu.RLock()
	h := activeHandler
	activeHandlerMu.RUnlock()
	if h == nil {
		return
	}

	// Samples are consumed (copied) before this function returns, so
	// viewing the C buffer without an allocation is safe.
	h(unsafe.Slice((*float32)(unsafe.Pointer(samples)), n))
}

// queueSource is the macOS implementation backed by an AudioQueue on the
// default input device.
type queueSource struct{}

func newSourceImpl() (sourceImpl, error) {
	return &queueSource{}, nil
}

func (*queueSource) start(sampleRate int, cb func(samples []float32)) error {
	activeHandlerMu.Lock()
	activeHandler = cb
	activeHandlerMu.Unlock()

	if st := C.startInputQueue(C.int(sampleRate)); st != 0 {
		activeHandlerMu.Lock()
		activeHandler = nil
		activeHandlerMu.Unlock()
		return fmt.Errorf("AudioQueue start failed (OSStatus %d)", int(st))
	}
	return nil
}

func (*queueSource) stop() error {
	// Synchronous stop: no callbacks fire after this returns.
	C.stopInputQueue()

	activeHandlerMu.Lock()
	activeHandler = nil
	activeHandlerMu.Unlock()
	return nil
}
