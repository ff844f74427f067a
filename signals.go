package orange

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for Serializer lifecycle events.
var (
	SignalSerializeStart      = capitan.NewSignal("orange.serialize.start", "Serialize run beginning")
	SignalSerializeComplete   = capitan.NewSignal("orange.serialize.complete", "Serialize run finished")
	SignalDeserializeStart    = capitan.NewSignal("orange.deserialize.start", "Deserialize run beginning")
	SignalDeserializeComplete = capitan.NewSignal("orange.deserialize.complete", "Deserialize run finished")
	SignalPostProcess         = capitan.NewSignal("orange.postprocess", "Post-processing pass finished")
	SignalErrorCallback       = capitan.NewSignal("orange.error", "Error callback invoked")
)

// Keys for typed event data.
var (
	KeyTypeName     = capitan.NewStringKey("type_name")
	KeyDuration     = capitan.NewDurationKey("duration")
	KeyError        = capitan.NewErrorKey("error")
	KeyNodeCount    = capitan.NewIntKey("node_count")
	KeySliceCount   = capitan.NewIntKey("slice_count")
	KeyPointerCount = capitan.NewIntKey("pointer_count")
	KeyPass         = capitan.NewStringKey("pass")
)

// emitSerializeStart emits an event when a serialize run begins.
func emitSerializeStart(typeName string) {
	capitan.Emit(context.Background(), SignalSerializeStart, KeyTypeName.Field(typeName))
}

// emitSerializeComplete emits an event when a serialize run finishes.
func emitSerializeComplete(typeName string, duration time.Duration, nodes int, err error) {
	ctx := context.Background()
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
		KeyNodeCount.Field(nodes),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalSerializeComplete, fields...)
		return
	}
	capitan.Emit(ctx, SignalSerializeComplete, fields...)
}

// emitDeserializeStart emits an event when a deserialize run begins.
func emitDeserializeStart(typeName string) {
	capitan.Emit(context.Background(), SignalDeserializeStart, KeyTypeName.Field(typeName))
}

// emitDeserializeComplete emits an event when a deserialize run finishes.
func emitDeserializeComplete(typeName string, duration time.Duration, err error) {
	ctx := context.Background()
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDeserializeComplete, fields...)
		return
	}
	capitan.Emit(ctx, SignalDeserializeComplete, fields...)
}

// emitPostProcess emits an event after a post-processing pass completes.
func emitPostProcess(pass string, slices, pointers int) {
	capitan.Emit(context.Background(), SignalPostProcess,
		KeyPass.Field(pass),
		KeySliceCount.Field(slices),
		KeyPointerCount.Field(pointers),
	)
}

// emitErrorCallback emits an event whenever the installed ErrorCallback is
// invoked, regardless of whether it raises or swallows.
func emitErrorCallback(err error) {
	capitan.Error(context.Background(), SignalErrorCallback, KeyError.Field(err))
}
