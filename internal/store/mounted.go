package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/process"
)

// CommandRunner executes one external command. *process.Runner satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, cmd process.Command) (process.Result, error)
}

// MountedBackend writes the store file on a filesystem that is normally
// mounted read-only, as found on appliances booting from flash.
//
// Each save remounts the filesystem read-write, writes the file and
// remounts it read-only again. The read-only remount runs even when an
// earlier step failed, and every failure is reported.
type MountedBackend struct {
	file      *FileBackend
	runner    CommandRunner
	readWrite []string
	readOnly  []string
	timeout   time.Duration
}

// MountedConfig configures a MountedBackend.
type MountedConfig struct {
	// Path is the store file path on the remounted filesystem.
	Path string

	// ReadWrite and ReadOnly are the remount commands (argv).
	ReadWrite []string
	ReadOnly  []string

	// Timeout bounds each remount command.
	Timeout time.Duration
}

// NewMountedBackend creates a mounted backend that runs remounts through runner.
func NewMountedBackend(cfg MountedConfig, runner CommandRunner) *MountedBackend {
	return &MountedBackend{
		file:      NewFileBackend(cfg.Path),
		runner:    runner,
		readWrite: cfg.ReadWrite,
		readOnly:  cfg.ReadOnly,
		timeout:   cfg.Timeout,
	}
}

// Load reads the store file. No remount is needed to read.
func (b *MountedBackend) Load(ctx context.Context) ([]Item, error) {
	return b.file.Load(ctx)
}

// Save remounts read-write, writes the store file and remounts read-only.
func (b *MountedBackend) Save(ctx context.Context, items []Item) error {
	var errs []error

	if err := b.remount(ctx, "remount-rw", b.readWrite); err != nil {
		errs = append(errs, err)
	} else if err := b.file.Save(ctx, items); err != nil {
		errs = append(errs, err)
	}

	// Always restore read-only, even after a failure, and even if ctx is
	// already done.
	if err := b.remount(context.WithoutCancel(ctx), "remount-ro", b.readOnly); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (b *MountedBackend) remount(ctx context.Context, name string, argv []string) error {
	_, err := b.runner.Run(ctx, process.Command{
		Name:    name,
		Argv:    argv,
		Timeout: b.timeout,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRemountFailed, name, err)
	}
	return nil
}
