// Package lib provides a Go SDK to run and follow provider validation tasks
// programmatically.
//
// This package allows applications to upload provider files to the pipeline,
// watch the pipeline stages, read the final report and chat about the
// results without shelling out to the agx CLI binary.
//
// # Quick Start
//
// Create a client, upload a file and wait for the report:
//
//	client, err := lib.New(ctx, lib.Config{APIURL: "http://localhost:8005"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	f, _ := os.Open("providers.csv")
//	defer f.Close()
//
//	res, err := client.Run(ctx, lib.RunOpts{
//	    FileName: "providers.csv",
//	    Content:  f,
//	    OnEvent: func(ev lib.Event) {
//	        for _, e := range ev.Entries {
//	            fmt.Printf("[%s] %s\n", e.Source, e.Message)
//	        }
//	    },
//	})
//	if errors.Is(err, lib.ErrPipelineFailure) {
//	    log.Fatalf("pipeline failed: %s", res.FailureReason)
//	}
//
//	fmt.Printf("%d valid, %d flagged\n", res.Report.ValidCount, res.Report.FlaggedCount)
//
// # Chat
//
// Once a task is tracked, ask questions about its results:
//
//	answer, err := client.Ask(ctx, "Which providers are flagged?")
//
// # Clients
//
// The SDK supports two client types:
//
//   - [ClientHTTP]: The pipeline REST API.
//   - [ClientFake]: In-memory simulated pipeline for unit testing. No API
//     needed. Set [Config].Client to [ClientFake] to use it.
//
// # Error Handling
//
// All errors can be checked with [errors.Is] against the sentinel errors:
// [ErrNotFound], [ErrNotValid], [ErrAlreadyExists], [ErrPipelineFailure],
// [ErrUnavailable] and [ErrSuperseded].
package lib
