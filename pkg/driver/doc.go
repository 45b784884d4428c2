// Package driver implements the build pipeline used for this project: it recreates the build
// directory, configures it with CMake, builds the "all" target and runs CTest twice (regular
// tests followed by a memory check).
// Every external tool is executed through mvdan.cc/sh with an explicit working directory so the
// process' own working directory is never touched.
package driver
