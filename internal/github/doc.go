// Package github declares the GitHub operations the workflow depends on along with
// their request and result types. The githubcli and githubapi packages provide the
// two interchangeable implementations.
package github
