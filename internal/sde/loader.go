package sde

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"eve-industry/internal/logger"
)

// Fuzzwork CSV dump file names (https://www.fuzzwork.co.uk/dump/latest/).
const (
	productsFile  = "industryActivityProducts"
	materialsFile = "industryActivityMaterials"
	activityFile  = "industryActivity"
)

type productRow struct {
	blueprintID int32
	quantity    int64
}

type activityKey struct {
	activity Activity
	typeID   int32
}

// FuzzworkTables is an in-memory RecipeSource built from the Fuzzwork CSV dump.
type FuzzworkTables struct {
	products  map[activityKey]productRow          // product type -> blueprint
	materials map[activityKey][]BlueprintMaterial // blueprint -> materials
	times     map[activityKey]int64               // blueprint -> base time
	outputs   map[activityKey]int64               // blueprint -> product quantity
}

func newFuzzworkTables() *FuzzworkTables {
	return &FuzzworkTables{
		products:  make(map[activityKey]productRow),
		materials: make(map[activityKey][]BlueprintMaterial),
		times:     make(map[activityKey]int64),
		outputs:   make(map[activityKey]int64),
	}
}

// LoadFuzzwork reads the three industry activity tables from dir (searched recursively).
func LoadFuzzwork(dir string) (*FuzzworkTables, error) {
	t := newFuzzworkTables()

	n, err := readCSV(dir, productsFile, []string{"typeID", "activityID", "productTypeID", "quantity"}, func(rec []int64) {
		act := Activity(rec[1])
		t.products[activityKey{act, int32(rec[2])}] = productRow{blueprintID: int32(rec[0]), quantity: rec[3]}
		t.outputs[activityKey{act, int32(rec[0])}] = rec[3]
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", productsFile, err)
	}
	logger.Info("SDE", fmt.Sprintf("Loaded %d product rows", n))

	n, err = readCSV(dir, materialsFile, []string{"typeID", "activityID", "materialTypeID", "quantity"}, func(rec []int64) {
		key := activityKey{Activity(rec[1]), int32(rec[0])}
		t.materials[key] = append(t.materials[key], BlueprintMaterial{TypeID: int32(rec[2]), Quantity: rec[3]})
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", materialsFile, err)
	}
	logger.Info("SDE", fmt.Sprintf("Loaded %d material rows", n))

	if _, err = readCSV(dir, activityFile, []string{"typeID", "activityID", "time"}, func(rec []int64) {
		t.times[activityKey{Activity(rec[1]), int32(rec[0])}] = rec[2]
	}); err != nil {
		return nil, fmt.Errorf("load %s: %w", activityFile, err)
	}

	return t, nil
}

// Recipe implements RecipeSource.
func (t *FuzzworkTables) Recipe(ctx context.Context, productTypeID int32, activity Activity) (*Recipe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := t.products[activityKey{activity, productTypeID}]
	if !ok {
		return nil, fmt.Errorf("%w: type %d (%s)", ErrNoRecipe, productTypeID, activity)
	}
	bpKey := activityKey{activity, p.blueprintID}
	mats := append([]BlueprintMaterial(nil), t.materials[bpKey]...)
	out, ok := t.outputs[bpKey]
	if !ok {
		out = 1
	}
	return &Recipe{
		TypeID:          productTypeID,
		BlueprintTypeID: p.blueprintID,
		Materials:       mats,
		BaseTime:        t.times[bpKey],
		OutputQuantity:  out,
		Activity:        activity,
	}, nil
}

// ResolveRecipes looks up a recipe for every item. Items without a blueprint for the
// activity are left out; any other source error aborts.
func ResolveRecipes(ctx context.Context, src RecipeSource, items []Item, activity Activity) ([]Recipe, error) {
	if !activity.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownActivity, activity)
	}
	recipes := make([]Recipe, 0, len(items))
	for _, it := range items {
		if it.TypeID == 0 {
			logger.Warn("SDE", fmt.Sprintf("%s has no type ID, skipping", it.Name))
			continue
		}
		r, err := src.Recipe(ctx, it.TypeID, activity)
		if errors.Is(err, ErrNoRecipe) {
			logger.Info("SDE", fmt.Sprintf("No %s blueprint for %s (%d)", activity, it.Name, it.TypeID))
			continue
		}
		if err != nil {
			return nil, err
		}
		r.Name = it.Name
		r.Volume = it.Volume
		recipes = append(recipes, *r)
	}
	return recipes, nil
}

// findFile searches dir recursively for baseName with a .csv extension.
func findFile(dir, baseName, ext string) (string, error) {
	var filePath string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(info.Name()), ext) {
			return nil
		}
		name := strings.TrimSuffix(info.Name(), filepath.Ext(info.Name()))
		if strings.EqualFold(name, baseName) {
			filePath = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return "", err
	}
	if filePath == "" {
		return "", fmt.Errorf("%s%s not found in %s", baseName, ext, dir)
	}
	return filePath, nil
}

// readCSV streams an all-integer Fuzzwork table, projecting the named columns in order.
// Malformed lines are skipped. Returns the number of rows delivered.
func readCSV(dir, baseName string, columns []string, fn func([]int64)) (int, error) {
	path, err := findFile(dir, baseName, ".csv")
	if err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	idx := make([]int, len(columns))
	for i, col := range columns {
		idx[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return 0, fmt.Errorf("column %q missing in %s", col, filepath.Base(path))
		}
	}

	count := 0
	vals := make([]int64, len(columns))
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		ok := true
		for i, j := range idx {
			if j >= len(rec) {
				ok = false
				break
			}
			v, perr := strconv.ParseInt(strings.TrimSpace(rec[j]), 10, 64)
			if perr != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		fn(vals)
		count++
	}
	return count, nil
}
