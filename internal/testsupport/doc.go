// Package testsupport holds helpers shared by package tests: temp-rooted
// application configs, history stores, registries and file fixtures.
package testsupport
