// Package automation gives sandboxed scripts a headless Chrome.
//
// Scripts see a small puppeteer-shaped API backed by chromedp: launch starts
// a private browser bound to the run, connect attaches to the shared browser
// kept by a SessionManager. Every browser and page a run opens is released
// when the run ends, whatever the outcome.
package automation
