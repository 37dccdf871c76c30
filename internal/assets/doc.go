// Package assets loads HTML templates from an install root on disk.
//
// The proposal service reads exactly one template, the style exemplar
// ({root}/templates/base.html), once at startup. Loading is done through the
// TemplateLoader interface so the exemplar source can be swapped in tests.
//
// # Directory Structure
//
//	{root}/
//	└── templates/
//	    └── {name}.html          # e.g. base.html, the style exemplar
//
// # Security
//
// Template names are validated to prevent path traversal. FilesystemLoader
// resolves symlinks and verifies paths stay within the root.
package assets
