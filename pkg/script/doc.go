// Package script evaluates the optional driver.star file in the source root. The script runs
// before the build directory is touched and can adjust the pipeline: pick a different generator,
// pass cache definitions to CMake, modify the environment or tolerate memory check failures.
// Options are declared in the global scope; an optional configure() function runs afterwards.
//
// Example:
//
//	build_type = option("build_type", "Debug", help = "CMAKE_BUILD_TYPE for the configure stage")
//	define("CMAKE_BUILD_TYPE", build_type)
//
//	def configure():
//	    if OS == "windows":
//	        load_vcvars("amd64")
//	    elif not isfile("/usr/bin/valgrind"):
//	        warn("valgrind is missing")
//	        tolerate_memcheck(True)
package script
