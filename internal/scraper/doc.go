// Package scraper defines the domain types shared by the task source, the
// portal scripts, the worker pool and the result writer.
package scraper
