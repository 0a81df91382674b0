package binderio_test

import (
	"fmt"

	"github.com/NoelVillette/visp/bindgen/binderio"
)

func ExampleCodeBuilder() {
	var cb binderio.CodeBuilder
	cb.Linef(`#include <pybind11/pybind11.h>`)
	cb.Linef(``)
	cb.Linef(`void init_submodule_core(py::module_ &root) {`)
	cb.Indent++
	cb.Linef(`py::module_ submodule = root.def_submodule("core");`)
	for i := 0; i < 3; i++ {
		cb.Linef(`submodule.def("f%v", &f%v);`, i, i)
	}
	cb.Indent--
	cb.Linef(`}`)

	fmt.Print(cb.String())
	// Output:
	// #include <pybind11/pybind11.h>
	//
	// void init_submodule_core(py::module_ &root) {
	//   py::module_ submodule = root.def_submodule("core");
	//   submodule.def("f0", &f0);
	//   submodule.def("f1", &f1);
	//   submodule.def("f2", &f2);
	// }
}

func ExampleCodeBuilder_Append() {
	cb := binderio.CodeBuilder{Indent: 1, IndentUnit: "\t"}
	cb.Append("a();\nb();")
	fmt.Printf("%q\n", cb.String())
	// Output:
	// "\ta();\n\tb();\n"
}
