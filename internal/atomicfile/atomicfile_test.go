package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestWriteCreatesFileWithContent(t *testing.T) {
	Convey("Given a target path with no existing file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "checkpoint.bin")

		err := Write(path, []byte("hello"))

		Convey("Write succeeds and the file holds the given bytes", func() {
			So(err, ShouldBeNil)
			got, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(got), ShouldEqual, "hello")
		})

		Convey("No stray temp file is left behind", func() {
			entries, err := os.ReadDir(dir)
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 1)
			So(entries[0].Name(), ShouldEqual, "checkpoint.bin")
		})
	})
}

func TestWriteReplacesExistingFileAtomically(t *testing.T) {
	Convey("Given a path with prior content", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "checkpoint.bin")
		So(Write(path, []byte("old")), ShouldBeNil)

		err := Write(path, []byte("new"))

		Convey("The file now holds only the new content", func() {
			So(err, ShouldBeNil)
			got, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(got), ShouldEqual, "new")
		})
	})
}

func TestWriteFailsWhenDirectoryDoesNotExist(t *testing.T) {
	Convey("Given a directory that does not exist", t, func() {
		path := filepath.Join(t.TempDir(), "missing", "checkpoint.bin")

		err := Write(path, []byte("data"))

		Convey("Write fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestAcquireDirLockIsExclusive(t *testing.T) {
	Convey("Given a directory with no lock yet", t, func() {
		dir := t.TempDir()

		lock, err := AcquireDirLock(dir)
		So(err, ShouldBeNil)

		Convey("A second acquire on the same directory fails", func() {
			_, err := AcquireDirLock(dir)
			So(err, ShouldNotBeNil)
		})

		Convey("Release frees the directory for a subsequent acquire", func() {
			So(lock.Release(), ShouldBeNil)
			lock2, err := AcquireDirLock(dir)
			So(err, ShouldBeNil)
			So(lock2.Release(), ShouldBeNil)
		})
	})
}

func TestAcquireDirLockCreatesMissingDirectory(t *testing.T) {
	Convey("Given a directory that does not yet exist", t, func() {
		dir := filepath.Join(t.TempDir(), "fresh-output")

		lock, err := AcquireDirLock(dir)

		Convey("AcquireDirLock creates it and succeeds", func() {
			So(err, ShouldBeNil)
			info, statErr := os.Stat(dir)
			So(statErr, ShouldBeNil)
			So(info.IsDir(), ShouldBeTrue)
			So(lock.Release(), ShouldBeNil)
		})
	})
}
