// Command photoferry moves queued image links into a photo library.
//
// "photoferry process" reads batch files from the queue directory, downloads
// each linked image, keeps the earliest entry per filename, stamps the capture
// time into the file, archives the batch, and (unless --dry-run, which is the
// default) uploads the images directory. "photoferry upload" runs only the
// upload half. "photoferry authorize" caches the OAuth token both need.
package main
