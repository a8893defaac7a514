package main

import (
	"fmt"
	"log"

	"github.com/dbcore/tuplestore/internal/storage"
	"github.com/dbcore/tuplestore/internal/txn"
)

func main() {
	fmt.Println("=== tuplestore storage core demo ===")

	store := storage.NewBlockStore(storage.DefaultBlockSize, 4, 0)
	table := storage.NewDataTable(store, []uint8{8, 8, 4}, 1)
	cols := table.AllColumns()
	layout := table.Layout()

	insertCtx := txn.NewSimpleContext(0, 0)
	initializer := storage.NewProjectedRowInitializer(layout, cols)
	redo := initializer.InitializeRow(make([]byte, initializer.ProjectedRowSize()))
	storage.WriteBytes(layout.AttrSize(1), 42, redo.AccessForceNotNull(0))
	storage.WriteBytes(layout.AttrSize(2), 7, redo.AccessForceNotNull(1))
	storage.WriteBytes(layout.AttrSize(3), 1, redo.AccessForceNotNull(2))

	slot, err := table.Insert(insertCtx, redo)
	if err != nil {
		log.Fatal("insert failed:", err)
	}
	fmt.Printf("✓ inserted tuple at block %p offset %d\n", slot.Block, slot.Offset)

	deltaInit := storage.NewProjectedRowInitializer(layout, []uint16{cols[2]})
	delta := deltaInit.InitializeRow(make([]byte, deltaInit.ProjectedRowSize()))
	storage.WriteBytes(layout.AttrSize(3), 2, delta.AccessForceNotNull(0))
	updateCtx := txn.NewSimpleContext(1, 1)
	if !table.Update(updateCtx, slot, delta) {
		log.Fatal("update hit an unexpected write-write conflict")
	}
	fmt.Println("✓ applied an update to column 3")

	readCtx := txn.NewSimpleContext(1, 2)
	out := initializer.InitializeRow(make([]byte, initializer.ProjectedRowSize()))
	table.Select(readCtx, slot, out)
	for i := uint16(0); i < out.NumColumns(); i++ {
		val := out.AccessWithNullCheck(i)
		colID := out.ColumnIdAt(i)
		if val == nil {
			fmt.Printf("  column %d: null\n", colID)
			continue
		}
		fmt.Printf("  column %d: %d\n", colID, storage.ReadBytes(layout.AttrSize(colID), val))
	}
}
