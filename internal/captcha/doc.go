// Package captcha detects anti-bot challenges on a rendered page, exchanges
// them for solution tokens with the CapSolver API, and builds the script that
// injects a token back into the page.
package captcha
