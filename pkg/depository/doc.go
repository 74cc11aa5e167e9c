// Package depository maps relational rows to typed records and back.
//
// A Repository owns a RecordConfig (model factory, dataset, primary key and
// codec chains) and exposes save/find/create/update/delete on top of it.
// Queries are built lazily through Result, an immutable proxy over a dataset
// that only executes on a terminal call:
//
//	db, _ := depository.Open(ctx, depository.Options{Driver: "sqlite", DSN: "app.db"})
//	_ = depository.RegisterDatabase("default", db)
//
//	people, _ := depository.New(depository.Config{
//		Model: func() depository.ModelFactory { return personSchema },
//		Table: "people",
//	})
//
//	ann, _ := people.Create(ctx, depository.Row{"name": "ann", "age": "30"})
//	adults, _ := people.Where(depository.L("age >= ?", 18)).Order("name").Records(ctx)
//
// Every repository packs records through a transform chain before writing
// (timestamps, integer and boolean coercion) and unpacks rows on the way back
// (datetime truncation, date parsing, boolean normalization). Chains can be
// replaced or extended per repository.
package depository
