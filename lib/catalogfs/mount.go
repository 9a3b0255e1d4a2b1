// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalogfs

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// MountOptions configures Mount.
type MountOptions struct {
	// Mountpoint is the directory where the filesystem is mounted.
	// It is created if it does not exist.
	Mountpoint string

	// FS answers every call.
	FS *FS

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// EntryTimeout and AttrTimeout bound how long the kernel caches
	// names and attributes. Zero uses one second; a refresh becomes
	// visible once they expire.
	EntryTimeout time.Duration
	AttrTimeout  time.Duration

	// Logger receives diagnostic messages. If nil, errors go to
	// stderr.
	Logger *slog.Logger
}

// Mount mounts fs read-only at the configured mountpoint. The caller
// must call Unmount on the returned server when done.
func Mount(options MountOptions) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.FS == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}
	if options.EntryTimeout == 0 {
		options.EntryTimeout = time.Second
	}
	if options.AttrTimeout == 0 {
		options.AttrTimeout = time.Second
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &node{options: &options}
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &options.EntryTimeout,
		AttrTimeout:     &options.AttrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "tapecat",
			Name:       "tapecat",
			AllowOther: options.AllowOther,
			Options:    []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("tape catalog filesystem mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// node is one path in the mount. Nodes hold only their path; every
// call resolves it against the index served at that moment, so a
// refresh is picked up without rebuilding the inode tree.
type node struct {
	gofuse.Inode
	options *MountOptions
	path    string
}

var (
	_ gofuse.InodeEmbedder = (*node)(nil)
	_ gofuse.NodeLookuper  = (*node)(nil)
	_ gofuse.NodeReaddirer = (*node)(nil)
	_ gofuse.NodeGetattrer = (*node)(nil)
	_ gofuse.NodeOpener    = (*node)(nil)
	_ gofuse.NodeReader    = (*node)(nil)
	_ gofuse.NodeStatfser  = (*node)(nil)

	_ gofuse.NodeSetattrer     = (*node)(nil)
	_ gofuse.NodeWriter        = (*node)(nil)
	_ gofuse.NodeCreater       = (*node)(nil)
	_ gofuse.NodeMkdirer       = (*node)(nil)
	_ gofuse.NodeMknoder       = (*node)(nil)
	_ gofuse.NodeUnlinker      = (*node)(nil)
	_ gofuse.NodeRmdirer       = (*node)(nil)
	_ gofuse.NodeRenamer       = (*node)(nil)
	_ gofuse.NodeLinker        = (*node)(nil)
	_ gofuse.NodeSymlinker     = (*node)(nil)
	_ gofuse.NodeSetxattrer    = (*node)(nil)
	_ gofuse.NodeRemovexattrer = (*node)(nil)
)

func (n *node) fs() *FS { return n.options.FS }

func (n *node) child(name string) string {
	if n.path == "" {
		return name
	}
	return n.path + "/" + name
}

// errno converts err, logging anything that is not an expected
// outcome of a lookup.
func (n *node) errno(op, path string, err error) syscall.Errno {
	errno := Errno(err)
	switch errno {
	case 0, syscall.ENOENT, syscall.ENOTDIR, syscall.EISDIR, syscall.EROFS, syscall.EAGAIN:
	default:
		n.options.Logger.Error("filesystem call failed", "op", op, "path", path, "error", err)
	}
	return errno
}

func fillAttr(out *fuse.Attr, attributes Attributes) {
	out.Mode = uint32(attributes.Mode.Perm())
	if attributes.IsDir() {
		out.Mode |= syscall.S_IFDIR
	} else {
		out.Mode |= syscall.S_IFREG
	}
	out.Size = uint64(attributes.Size)
	out.Blocks = (out.Size + 511) / 512
	out.Blksize = BlockSize
	out.Nlink = attributes.Links
	out.SetTimes(timePointer(attributes.AccessTime), timePointer(attributes.ModifyTime), timePointer(attributes.ChangeTime))
}

func timePointer(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func stableMode(mode fs.FileMode) uint32 {
	if mode.IsDir() {
		return syscall.S_IFDIR
	}
	return syscall.S_IFREG
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	path := n.child(name)
	attributes, err := n.fs().GetAttributes(path)
	if err != nil {
		return nil, n.errno("lookup", path, err)
	}
	fillAttr(&out.Attr, attributes)
	child := n.NewInode(ctx, &node{options: n.options, path: path}, gofuse.StableAttr{Mode: stableMode(attributes.Mode)})
	return child, 0
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := n.fs().ListDirectory(n.path)
	if err != nil {
		return nil, n.errno("readdir", n.path, err)
	}
	list := make([]fuse.DirEntry, len(entries))
	for i, entry := range entries {
		list[i] = fuse.DirEntry{Name: entry.Name, Mode: stableMode(entry.Mode)}
	}
	return gofuse.NewListDirStream(list), 0
}

func (n *node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attributes, err := n.fs().GetAttributes(n.path)
	if err != nil {
		return n.errno("getattr", n.path, err)
	}
	fillAttr(&out.Attr, attributes)
	return 0
}

func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if err := n.fs().Open(n.path, int(flags)); err != nil {
		return nil, 0, n.errno("open", n.path, err)
	}
	// The payload is shorter than the reported size; direct I/O
	// makes reads end where the payload does.
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := n.fs().Read(n.path, off, len(dest))
	if err != nil {
		return nil, n.errno("read", n.path, err)
	}
	return fuse.ReadResultData(data), 0
}

func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	stats, err := n.fs().Statfs()
	if err != nil {
		return n.errno("statfs", n.path, err)
	}
	out.Bsize = stats.BlockSize
	out.Frsize = stats.BlockSize
	out.Blocks = stats.Blocks
	out.Files = stats.Files
	out.NameLen = 255
	return 0
}

func (n *node) reject(op MutateOp, path string) syscall.Errno {
	return Errno(n.fs().Mutate(op, path))
}

func (n *node) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return n.reject(OpSetattr, n.path)
}

func (n *node) Write(ctx context.Context, f gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	return 0, n.reject(OpWrite, n.path)
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, n.reject(OpCreate, n.child(name))
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, n.reject(OpMkdir, n.child(name))
}

func (n *node) Mknod(ctx context.Context, name string, mode uint32, dev uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, n.reject(OpMknod, n.child(name))
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return n.reject(OpUnlink, n.child(name))
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return n.reject(OpRmdir, n.child(name))
}

func (n *node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	return n.reject(OpRename, n.child(name))
}

func (n *node) Link(ctx context.Context, target gofuse.InodeEmbedder, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, n.reject(OpLink, n.child(name))
}

func (n *node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, n.reject(OpSymlink, n.child(name))
}

func (n *node) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return n.reject(OpSetxattr, n.path)
}

func (n *node) Removexattr(ctx context.Context, attr string) syscall.Errno {
	return n.reject(OpRemovexattr, n.path)
}
