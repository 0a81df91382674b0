/*
Package bindgen generates pybind11 Python bindings for the ViSP C++ headers.

It reads every header below an include root, works out in which order
declarations must be registered and writes one C++ source unit (or several,
for large submodules) per submodule plus a main unit defining the Python
extension module.

# Architecture pipeline (for developers)

Each element in the pipeline has distinct sub-packages that do a specific part. These are then "glued" together in [Generator.Run].
 1. [config] and [discover]: Load the user-supplied 'config.toml' and find all submodules and their headers
 2. [preprocessor] and [parser]: Extract declarations from every header in parallel, collecting all failures
 3. [bindspec]: Apply the user-supplied renaming and exclusion rules
 4. [resolve]: Build the header dependency graph and compute the global header order
 5. [environment]: Propagate the names visible from each header along the global order
 6. [submodule]: Partition the global order into submodules and generate their registration code
 7. [entry]: Generate the main unit declaring and invoking every submodule's entry function
 8. [binderio]: Write all files, only after every previous step succeeded
*/
package bindgen
