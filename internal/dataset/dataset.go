// Package dataset reads the training image folders: one sub-directory per student, named by student ID.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrMissing means the dataset directory does not exist.
	ErrMissing = errors.New("dataset directory not found")
	// ErrEmpty means the dataset directory holds no usable student images.
	ErrEmpty = errors.New("dataset directory is empty")
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".pgm":  true,
}

// Person is one student's folder.
type Person struct {
	StudentID string
	Images    []string
}

// Dataset is the scanned content of the dataset directory, persons sorted by StudentID.
type Dataset struct {
	Root    string
	Persons []Person
}

// StudentIDs returns the IDs in label order.
func (d *Dataset) StudentIDs() []string {
	ids := make([]string, len(d.Persons))
	for i, p := range d.Persons {
		ids[i] = p.StudentID
	}
	return ids
}

// ImageCount returns the total number of images across all persons.
func (d *Dataset) ImageCount() int {
	n := 0
	for _, p := range d.Persons {
		n += len(p.Images)
	}
	return n
}

// Scan lists root. Students with no images are skipped; if nothing is left ErrEmpty is returned.
func Scan(root string) (*Dataset, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrMissing, root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Root: root}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		images, err := listImages(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			continue
		}
		ds.Persons = append(ds.Persons, Person{StudentID: e.Name(), Images: images})
	}

	if len(ds.Persons) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, root)
	}
	sort.Slice(ds.Persons, func(i, j int) bool {
		return ds.Persons[i].StudentID < ds.Persons[j].StudentID
	})
	return ds, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Remove deletes a student's image folder. A missing folder is not an error.
func Remove(root, studentID string) error {
	if studentID == "" || studentID != filepath.Base(studentID) || studentID == "." || studentID == ".." {
		return fmt.Errorf("invalid student id %q", studentID)
	}
	return os.RemoveAll(filepath.Join(root, studentID))
}
