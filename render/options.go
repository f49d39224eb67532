package render

type options struct {
	compiler ShaderCompiler
}

type Option func(*options)

// WithShaderCompiler sets the compiler that queued shaders are handed to on each tick.
// Without one, queued shaders are logged and dropped.
func WithShaderCompiler(compiler ShaderCompiler) Option {
	return func(o *options) {
		o.compiler = compiler
	}
}
