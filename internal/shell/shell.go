package shell

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/tuannm99/novabuf/internal/bufferpool"
	"github.com/tuannm99/novabuf/internal/storage"
)

var (
	ErrUnknownCommand = errors.New("shell: unknown command")
	ErrUsage          = errors.New("shell: wrong arguments")
	ErrClosed         = errors.New("shell: closed")
)

const Help = `commands:
  open <file>                    open (or create) a file in the workdir
  fetch <file> <page>            pin a page (read from disk on miss)
  unpin <file> <page> [dirty]    release one pin, optionally marking the page dirty
  alloc <file>                   allocate a new page (returned pinned)
  put <file> <page> <text...>    insert a record into a page and mark it dirty
  get <file> <page> <slot>       print one record
  show <file> <page>             print the page layout
  flush <file>                   write back dirty pages of a file
  flushall                       write back every dirty page
  evict <file>                   flush and drop all pages of a file from the pool
  dispose <file> <page>          drop a page without writing it and free it in the file
  dump                           print every frame descriptor
  stats                          print pool counters
  help                           show this help
  quit | exit                    leave`

// Shell executes text commands against one BufMgr and the files it opened.
// Exec and Close may be called from different goroutines.
type Shell struct {
	mu     sync.Mutex
	closed bool

	fs      afero.Fs
	workdir string
	mgr     *bufferpool.BufMgr
	files   map[string]*storage.DiskFile
	out     io.Writer
	log     *slog.Logger
}

func New(fs afero.Fs, workdir string, mgr *bufferpool.BufMgr, out io.Writer, log *slog.Logger) *Shell {
	if log == nil {
		log = slog.Default()
	}
	return &Shell{
		fs:      fs,
		workdir: workdir,
		mgr:     mgr,
		files:   make(map[string]*storage.DiskFile),
		out:     out,
		log:     log,
	}
}

func (s *Shell) file(name string) (*storage.DiskFile, error) {
	if f, ok := s.files[name]; ok {
		return f, nil
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: bad file name %q", ErrUsage, name)
	}
	f, err := storage.OpenDiskFile(s.fs, s.workdir, name)
	if err != nil {
		return nil, err
	}
	s.files[name] = f
	s.log.Info("shell: open file", "file", f.Filename(), "pages", f.NumPages())
	return f, nil
}

func parsePage(arg string) (storage.PageID, error) {
	n, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad page number %q", ErrUsage, arg)
	}
	return storage.PageID(n), nil
}

// filePage resolves the common "<file> <page>" prefix.
func (s *Shell) filePage(args []string) (*storage.DiskFile, storage.PageID, error) {
	if len(args) < 2 {
		return nil, 0, fmt.Errorf("%w: need <file> <page>", ErrUsage)
	}
	pageNo, err := parsePage(args[1])
	if err != nil {
		return nil, 0, err
	}
	f, err := s.file(args[0])
	if err != nil {
		return nil, 0, err
	}
	return f, pageNo, nil
}

func (s *Shell) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

// Exec runs one command line. quit reports that the caller should stop.
func (s *Shell) Exec(line string) (quit bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true, ErrClosed
	}
	return s.exec(line)
}

func (s *Shell) exec(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit", `\q`:
		return true, nil
	case "help", `\help`:
		s.printf("%s\n", Help)
		return false, nil
	case "open":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: open <file>", ErrUsage)
		}
		f, err := s.file(args[0])
		if err != nil {
			return false, err
		}
		s.printf("%s: %d pages, %d free\n", f.Filename(), f.NumPages(), f.NumFree())
		return false, nil
	case "fetch":
		f, pageNo, err := s.filePage(args)
		if err != nil {
			return false, err
		}
		p, err := s.mgr.ReadPage(f, pageNo)
		if err != nil {
			return false, err
		}
		s.printf("pinned %s page %d (%d records, %d bytes free)\n", args[0], pageNo, p.NumSlots(), p.FreeSpace())
		return false, nil
	case "unpin":
		f, pageNo, err := s.filePage(args)
		if err != nil {
			return false, err
		}
		dirty := len(args) > 2 && args[2] == "dirty"
		return false, s.mgr.UnpinPage(f, pageNo, dirty)
	case "alloc":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: alloc <file>", ErrUsage)
		}
		f, err := s.file(args[0])
		if err != nil {
			return false, err
		}
		pageNo, _, err := s.mgr.AllocPage(f)
		if err != nil {
			return false, err
		}
		s.printf("allocated %s page %d (pinned)\n", args[0], pageNo)
		return false, nil
	case "put":
		return false, s.put(args)
	case "get":
		return false, s.get(args)
	case "show":
		f, pageNo, err := s.filePage(args)
		if err != nil {
			return false, err
		}
		p, err := s.mgr.ReadPage(f, pageNo)
		if err != nil {
			return false, err
		}
		err = p.Debug(s.out)
		return false, multierr.Append(err, s.mgr.UnpinPage(f, pageNo, false))
	case "flush", "evict":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: %s <file>", ErrUsage, cmd)
		}
		f, err := s.file(args[0])
		if err != nil {
			return false, err
		}
		if cmd == "flush" {
			return false, s.mgr.FlushFile(f)
		}
		return false, s.mgr.EvictFile(f)
	case "flushall":
		return false, s.mgr.FlushAll()
	case "dispose":
		f, pageNo, err := s.filePage(args)
		if err != nil {
			return false, err
		}
		return false, s.mgr.DisposePage(f, pageNo)
	case "dump":
		return false, s.mgr.PrintSelf(s.out)
	case "stats":
		st := s.mgr.Stats()
		s.printf("accesses=%d hits=%d diskreads=%d diskwrites=%d evictions=%d\n",
			st.Accesses, st.Hits, st.DiskReads, st.DiskWrites, st.Evictions)
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func (s *Shell) put(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: put <file> <page> <text...>", ErrUsage)
	}
	f, pageNo, err := s.filePage(args)
	if err != nil {
		return err
	}
	p, err := s.mgr.ReadPage(f, pageNo)
	if err != nil {
		return err
	}
	slot, err := p.InsertRecord([]byte(strings.Join(args[2:], " ")))
	if err != nil {
		return multierr.Append(err, s.mgr.UnpinPage(f, pageNo, false))
	}
	s.printf("%s page %d slot %d\n", args[0], pageNo, slot)
	return s.mgr.UnpinPage(f, pageNo, true)
}

func (s *Shell) get(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: get <file> <page> <slot>", ErrUsage)
	}
	slot, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("%w: bad slot %q", ErrUsage, args[2])
	}
	f, pageNo, err := s.filePage(args)
	if err != nil {
		return err
	}
	p, err := s.mgr.ReadPage(f, pageNo)
	if err != nil {
		return err
	}
	rec, err := p.ReadRecord(slot)
	if err == nil {
		s.printf("%s\n", rec)
	}
	return multierr.Append(err, s.mgr.UnpinPage(f, pageNo, false))
}

// Close shuts the pool down (writing back dirty pages) and then closes files.
// It waits for a running Exec and is a no-op when called again.
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.mgr.Close()

	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		err = multierr.Append(err, s.files[name].Close())
	}
	return err
}
