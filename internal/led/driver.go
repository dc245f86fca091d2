package led

import "errors"

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes an RGB frame to hardware. rgb is row-major, 3 bytes per pixel.
	Write(rgb []byte) error
	// Close releases resources.
	Close() error
}

// Tee writes every frame to each driver in turn, e.g. hardware plus the
// preview socket.
type Tee []Driver

func (t Tee) Write(rgb []byte) error {
	var errs []error
	for _, d := range t {
		if err := d.Write(rgb); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t Tee) Close() error {
	var errs []error
	for _, d := range t {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
