// Package core provides the supplier catalog intake pipeline.
//
// The package holds all domain logic independent of any transport or
// storage driver. It is driven by the HTTP API in internal/web and by tests,
// and persists through the [Store] interface implemented under
// internal/store.
//
// # Intake
//
// [Service.Intake] saves an uploaded file and moves its [Upload] through
// PENDING, PROCESSING and then COMPLETED or FAILED:
//
//  1. The extractor registered for the file type reads the file
//     ([SpreadsheetExtractor] for EXCEL, [XMLExtractor] for XML).
//  2. Headers or tags are resolved to canonical fields once per file by the
//     schema mapper, and raw values are coerced with [ParseDecimal] and
//     [ParseBool].
//  3. The [Persister] creates the [Batch], then saves records one by one
//     inside a single transaction. A bad record is reported and skipped.
//
// Structural failures end the upload in FAILED with the error message; they
// never escape [Service.ProcessUpload].
//
// # Validation
//
// A reviewer sets the batch's supplier and product group with
// [Service.SetBatchContext]. The [Validator] then normalizes each product
// code with [NormalizeCode], checks product and supplier against the ERP
// [Registry], applies the XML tax rules, and stores VALID, INVALID or
// PENDING on each record.
//
// # ERP sync
//
// [Service.SubmitBatch] sends the VALID records of a batch as one purchase
// order. Records are marked synced only after the ERP confirms the order.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages with [MapError].
// Codes are grouped as DB, VAL, FILE, UPL, BAT, ERP and RATE, with ERR000
// as the fallback.
package core
