// Package html2preview captures preview images of the pages of a built
// static site using headless Chrome.
//
// # Quick Start
//
// Point a Generator at the site directory and run it once:
//
//	g, err := html2preview.NewGenerator(html2preview.RunConfig{
//	    RootDir:         "public",
//	    CaptureSelector: "#card",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := g.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d of %d pages captured\n", report.Succeeded, report.Total)
//
// # Pipeline
//
// A run goes through these stages:
//
//  1. Discovery: pages matching GlobPattern under RootDir (doublestar)
//  2. A loopback static server for RootDir (chi)
//  3. One headless browser (go-rod), one incognito context per page
//  4. A screenshot of CaptureSelector, or of the viewport when empty
//  5. The image is written to OutputDir as <path with "/" replaced by "___">.png
//  6. Optionally, the original HTML file is deleted
//
// Teardown always runs: the browser is closed, then the server is stopped.
//
// # Errors
//
// Page failures do not stop the run. They are recorded in the RunReport
// with a short Reason (NavigationTimeout, ElementNotFound, CaptureError,
// WriteError, DeleteError, Canceled, Skipped). Failures that prevent any
// capture are returned as *FatalError along with the partial report:
//
//	report, err := g.Run(ctx)
//	var fe *html2preview.FatalError
//	if errors.As(err, &fe) {
//	    log.Printf("aborted while %s: %v", fe.Stage, fe.Err)
//	}
//
// Set FailOnJobError to make RunReport.Err fail when any page failed.
//
// # Logging and Progress
//
// The Generator discards logs unless WithLogger is given a *slog.Logger.
// WithProgress observes every job phase change:
//
//	g, err := html2preview.NewGenerator(cfg,
//	    html2preview.WithLogger(slog.Default()),
//	    html2preview.WithProgress(func(p html2preview.Progress) {
//	        fmt.Println(p.RelativePath, p.Phase)
//	    }),
//	)
//
// # Browser
//
// Set ROD_BROWSER_BIN to use a specific Chrome binary, and ROD_NO_SANDBOX=1
// in containers. When no browser is found, go-rod downloads one.
package html2preview
