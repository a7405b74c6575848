package cvm

// findHandler implements spec §4.4's exception-table scan: the first
// entry whose [StartPC, EndPC) contains pc and whose CatchType is either
// 0 (catches everything, used for compiled `finally`) or a superclass of
// excClass wins.
func (e *Engine) findHandler(frame *Frame, pc int, excClass *Class) (int, bool) {
	code := frame.Method.Raw.Code
	if code == nil {
		return 0, false
	}
	for _, entry := range code.ExceptionTable {
		if pc < int(entry.StartPC) || pc >= int(entry.EndPC) {
			continue
		}
		if entry.CatchType == 0 {
			return int(entry.HandlerPC), true
		}
		catchName, err := frame.Class.ConstantPool().ClassNameAt(entry.CatchType)
		if err != nil {
			continue
		}
		catchClass, err := e.Link(catchName)
		if err != nil {
			continue
		}
		if excClass.IsSubclassOf(catchClass) {
			return int(entry.HandlerPC), true
		}
	}
	return 0, false
}

// unwind drives one ThrownException up through frame: it looks for a
// handler in frame itself first (spec §4.4), and only reports "not
// handled here" to its caller (interpret's invoke loop) if none matches,
// at which point the frame is popped and the exception keeps propagating.
func (e *Engine) unwind(frame *Frame, pc int, thrown *ThrownException) (handlerPC int, handled bool) {
	if thrown.Value.IsNull() {
		return 0, false
	}
	excClass := thrown.Value.Ptr.Class()
	if excClass == nil {
		return 0, false
	}
	return e.findHandler(frame, pc, excClass)
}

// athrow implements spec §4.4's athrow opcode: pop the reference (NPE if
// null) and begin unwinding.
func (e *Engine) athrow(frame *Frame) error {
	ref := frame.Pop().(Reference)
	if ref.IsNull() {
		obj, err := e.newThrowable(NullPointerException, "athrow: null")
		if err != nil {
			return err
		}
		ref = Reference{Ptr: obj}
	}
	return &ThrownException{Value: ref}
}
