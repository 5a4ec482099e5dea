package trim

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/astei/anviltrim/anvil"
)

// Dimension names a set of region files inside a world.
type Dimension struct {
	Name string
	// Dir is the region folder relative to the world folder.
	Dir string
}

var (
	Overworld = Dimension{Name: "overworld", Dir: "region"}
	Nether    = Dimension{Name: "nether", Dir: filepath.Join("DIM-1", "region")}
	End       = Dimension{Name: "end", Dir: filepath.Join("DIM1", "region")}
)

// BuiltinDimensions are the dimensions every vanilla world has.
var BuiltinDimensions = []Dimension{Overworld, Nether, End}

const datapackDimensionsDir = "dimensions"

// RegionFile is one discovered region file.
type RegionFile struct {
	Path      string
	Dimension string
	X, Z      int
}

// ValidateWorld checks that world looks like a Java world folder.
func ValidateWorld(fs afero.Fs, world string) error {
	if ok, err := afero.DirExists(fs, world); err != nil || !ok {
		return fmt.Errorf("world folder %s does not exist", world)
	}
	if ok, _ := afero.Exists(fs, filepath.Join(world, "level.dat")); !ok {
		return fmt.Errorf("%s has no level.dat", world)
	}
	if ok, _ := afero.DirExists(fs, filepath.Join(world, Overworld.Dir)); !ok {
		return fmt.Errorf("%s has no region folder", world)
	}
	return nil
}

// Dimensions lists the built-in dimensions plus datapack dimensions found under
// dimensions/<namespace>/<name>/region, named namespace:name.
func Dimensions(fs afero.Fs, world string) ([]Dimension, error) {
	dims := append([]Dimension(nil), BuiltinDimensions...)

	root := filepath.Join(world, datapackDimensionsDir)
	namespaces, err := afero.ReadDir(fs, root)
	if os.IsNotExist(err) {
		return dims, nil
	} else if err != nil {
		return nil, err
	}

	for _, namespace := range namespaces {
		if !namespace.IsDir() {
			continue
		}
		names, err := afero.ReadDir(fs, filepath.Join(root, namespace.Name()))
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			dir := filepath.Join(datapackDimensionsDir, namespace.Name(), name.Name(), "region")
			if ok, _ := afero.DirExists(fs, filepath.Join(world, dir)); name.IsDir() && ok {
				dims = append(dims, Dimension{Name: namespace.Name() + ":" + name.Name(), Dir: dir})
			}
		}
	}
	return dims, nil
}

// Discover lists the region files of the selected dimensions, sorted by path. An empty
// selection means every dimension.
func Discover(fs afero.Fs, world string, selected []string) ([]RegionFile, error) {
	dims, err := Dimensions(fs, world)
	if err != nil {
		return nil, err
	}
	dims, err = selectDimensions(dims, selected)
	if err != nil {
		return nil, err
	}

	var files []RegionFile
	for _, dim := range dims {
		dir := filepath.Join(world, dim.Dir)
		entries, err := afero.ReadDir(fs, dir)
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			x, z, ok := anvil.ParseRegionName(entry.Name())
			if !ok {
				continue
			}
			files = append(files, RegionFile{
				Path:      filepath.Join(dir, entry.Name()),
				Dimension: dim.Name,
				X:         x,
				Z:         z,
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func selectDimensions(all []Dimension, selected []string) ([]Dimension, error) {
	if len(selected) == 0 {
		return all, nil
	}

	byName := make(map[string]Dimension, len(all))
	for _, dim := range all {
		byName[dim.Name] = dim
	}

	var dims []Dimension
	seen := make(map[string]bool)
	for _, name := range selected {
		dim, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown dimension %q", name)
		}
		if !seen[name] {
			seen[name] = true
			dims = append(dims, dim)
		}
	}
	return dims, nil
}
