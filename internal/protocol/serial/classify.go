// internal/protocol/serial/classify.go
package serial

import (
	"context"
	"errors"
	"io"
	"os"
	"syscall"

	"go.bug.st/serial"

	"monitor-service/internal/model"
)

// Classify maps a port failure to a monitor error code. A nil result means
// the failure is not recognised.
func Classify(err error) *model.ErrorCode {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return model.Code(model.ErrClientCancel)
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortBusy:
			return model.Code(model.ErrDeviceBusy)
		case serial.PortNotFound, serial.PortClosed:
			return model.Code(model.ErrDeviceNotConfigured)
		}
		return nil
	}

	switch {
	case errors.Is(err, syscall.EBUSY):
		return model.Code(model.ErrDeviceBusy)
	case errors.Is(err, io.EOF),
		errors.Is(err, os.ErrNotExist),
		errors.Is(err, syscall.EIO),
		errors.Is(err, syscall.ENXIO),
		errors.Is(err, syscall.ENODEV):
		// the device node vanished under an open port
		return model.Code(model.ErrDeviceNotConfigured)
	}
	return nil
}
