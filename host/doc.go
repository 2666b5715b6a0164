// Package host exposes the reference bridge to WebAssembly addons.
//
// A Bridge owns one managed heap and realm and the environments of the
// addons loaded into it. Instantiate registers a host module (namespace
// "napi" by default) into a wazero runtime; Load instantiates an addon
// that imports it and runs the addon's registration export.
//
// # ABI
//
// Every host function takes the addon's env handle first. Values, scopes
// and references cross the boundary as i32 handles from the env's handle
// table, with 0 meaning "no value". Functions return the status code
// first and, where the native API has an out-parameter, the result as a
// second i32:
//
//	create_object(env)                       -> (status, value)
//	create_string_utf8(env, ptr, len)        -> (status, value)
//	create_reference(env, value, count)      -> (status, ref)
//	delete_reference(env, ref)               -> status
//	reference_ref(env, ref)                  -> (status, count)
//	reference_unref(env, ref)                -> (status, count)
//	get_reference_value(env, ref)            -> (status, value)
//	open_handle_scope(env)                   -> (status, scope)
//	close_handle_scope(env, scope)           -> status
//	open_escapable_handle_scope(env)         -> (status, scope)
//	close_escapable_handle_scope(env, scope) -> status
//	escape_handle(env, scope, value)         -> (status, value)
//	add_finalizer(env, obj, data, cb, hint)  -> (status, ref)
//	wrap(env, obj, data, cb, hint)           -> (status, ref)
//	unwrap(env, obj)                         -> (status, data)
//	remove_wrap(env, obj)                    -> (status, data)
//	set_instance_data(env, data, cb, hint)   -> status
//	get_instance_data(env)                   -> (status, data)
//	get_global(env)                          -> (status, value)
//	typeof(env, value)                       -> (status, kind)
//	run_gc(env)                              -> status
//	get_last_error_info(env)                 -> (status, code)
//	get_last_error_message(env, ptr, cap)    -> (status, len)
//
// Every function except the two last-error getters records its status as
// the env's last error. A len of 0xFFFFFFFF to create_string_utf8 reads up
// to the first NUL byte.
//
// # Addon exports
//
// An addon must export its linear memory as "memory" and
//
//	napi_register_module_v1(env, exports) -> value
//
// which runs inside a native call with a fresh exports object. A returned
// 0 keeps that object. Addons that pass a non-zero cb to add_finalizer,
// wrap or set_instance_data must also export
//
//	napi_finalize(cb, data, hint)
//
// which the bridge calls once when the finalizer fires.
package host
